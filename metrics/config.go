package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "meshnode"
//	  version: "v0.3.0"
//	  enable_runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 作为 OpenTelemetry Resource 的 service.name
	ServiceName string `mapstructure:"service_name"`

	// Version 作为 service.version
	Version string `mapstructure:"version"`

	// EnableRuntime 是否采集 Go 运行时指标（goroutine、GC、内存）
	EnableRuntime bool `mapstructure:"enable_runtime"`
}

// NewDevDefaultConfig 开发环境默认配置
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}

// NewProdDefaultConfig 生产环境默认配置，额外开启运行时指标
func NewProdDefaultConfig(serviceName, version string) *Config {
	return &Config{
		Enabled:       true,
		ServiceName:   serviceName,
		Version:       version,
		EnableRuntime: true,
	}
}

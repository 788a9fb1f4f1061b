package introspect

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/meshroute/xerrors"
)

// Config 监控 HTTP 服务配置
type Config struct {
	// Addr 监听地址，默认 ":8081"
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`

	// Mode gin 运行模式：debug, release, test，默认 release
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`

	// ReadHeaderTimeout 默认 5s
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout"`

	// ShutdownTimeout 优雅关闭的最长等待时间，默认 5s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// CPUSamples /nodes 中平均 CPU 使用的样本数，默认 3
	CPUSamples int `mapstructure:"cpu_samples" yaml:"cpu_samples" json:"cpu_samples"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8081"
	}
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.CPUSamples == 0 {
		c.CPUSamples = 3
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	switch c.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return xerrors.Mark(xerrors.Errorf("unknown gin mode %q", c.Mode), xerrors.ErrInvalidInput)
	}
	if c.CPUSamples < 1 {
		return xerrors.Mark(xerrors.New("cpu_samples must be >= 1"), xerrors.ErrInvalidInput)
	}
	return nil
}

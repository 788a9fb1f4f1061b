// Package config 为 meshroute 提供统一的配置管理能力，基于 Viper 实现。
//
// 配置优先级（高 → 低）：
//
//	环境变量（<PREFIX>_A_B 对应 a.b） > .env > config.<env>.yaml > config.yaml > WithDefaults
//
// 环境名通过 <PREFIX>_ENV 指定，例如 MESHROUTE_ENV=prod 会额外合并 config.prod.yaml。
//
// 基本使用：
//
//	loader := config.MustLoad(
//		config.WithConfigName("meshnode"),
//		config.WithConfigPaths("./config"),
//		config.WithEnvPrefix("MESHROUTE"),
//	)
//
//	var cfg AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//		panic(err)
//	}
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		logger.Info("config changed", clog.Any("value", event.Value))
//	}
package config

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/meshroute/clog"
)

// Loader 配置加载器
type Loader interface {
	// Load 加载配置并开始监听文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听某个 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}

// Option 加载器选项
type Option func(*options)

type options struct {
	name      string
	paths     []string
	fileType  string
	envPrefix string
	defaults  map[string]any
	logger    clog.Logger
}

func defaultOptions() *options {
	return &options{
		name:      "config",
		paths:     []string{".", "./config"},
		fileType:  "yaml",
		envPrefix: "MESHROUTE",
		logger:    clog.Discard(),
	}
}

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(o *options) {
		o.paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, toml)
func WithConfigType(typ string) Option {
	return func(o *options) {
		if typ != "" {
			o.fileType = typ
		}
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.envPrefix = strings.ToUpper(prefix)
		}
	}
}

// WithDefaults 设置默认值
//
// 只有 Viper 已知的 key 才能被环境变量覆盖，因此所有需要支持环境变量的 key
// 都应出现在配置文件或默认值中。
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithLogger 注入日志记录器，自动追加 "config" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// New 创建配置加载器，调用 Load 后生效
func New(opts ...Option) (Loader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newLoader(o), nil
}

// MustLoad 创建并加载配置，失败时 panic，仅用于进程启动阶段
func MustLoad(opts ...Option) Loader {
	l, err := New(opts...)
	if err != nil {
		panic(err)
	}
	if err := l.Load(context.Background()); err != nil {
		panic(err)
	}
	return l
}

package metrics

import "github.com/ceyewan/meshroute/clog"

// Option 配置 Meter 实例的选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器，组件会自动追加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

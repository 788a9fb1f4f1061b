package catalog

import (
	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/strategy"
)

// Option 目录选项
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	registry       *strategy.Registry
	defaultFactory strategy.Factory
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
}

// WithLogger 注入日志记录器，自动追加 "catalog" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("catalog")
		}
	}
}

// WithMeter 注入指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithRegistry 使用指定的策略注册表解析 action 声明的策略，默认 strategy.NewRegistry()
func WithRegistry(r *strategy.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithDefaultFactory 直接指定默认策略工厂，优先于 Config.DefaultStrategy
func WithDefaultFactory(f strategy.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.defaultFactory = f
		}
	}
}

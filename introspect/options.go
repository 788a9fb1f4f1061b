package introspect

import (
	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
}

// WithLogger 注入日志记录器，组件内部会自动追加 "introspect" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("introspect")
		}
	}
}

// WithMeter 注入指标；/metrics 暴露该 Meter 的抓取入口，HTTP 请求指标也记录在其中
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

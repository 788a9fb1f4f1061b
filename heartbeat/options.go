package heartbeat

import (
	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
)

// Option Publisher 与 Subscriber 共用的初始化选项
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

// WithLogger 注入日志记录器，组件内部会自动追加 "heartbeat" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("heartbeat")
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

func applyOptions(opts []Option) *options {
	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// Package metrics 为 meshroute 提供统一的指标收集能力。
// 基于 OpenTelemetry 构建，通过 Prometheus exporter 暴露。
//
// 每个 Meter 持有独立的 Prometheus Registry，抓取入口通过 Meter.Handler() 获得，
// 由 introspect 组件挂载到 /metrics 上，不再单独启动 HTTP 服务。
//
// 快速开始：
//
//	meter, err := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "meshnode",
//	})
//	defer meter.Shutdown(ctx)
//
//	selections, _ := meter.Counter("catalog_selections_total", "Endpoint selections")
//	selections.Inc(ctx, metrics.L("action", "users.get"))
package metrics

import (
	"context"
	"net/http"
)

// Counter 计数器，只增不减
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 将计数器增加给定的值，负数会被忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘，记录可任意增减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图，记录值的分布
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂
//
// Meter 创建的指标是并发安全的。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// GaugeFunc 注册异步仪表盘，每次抓取时调用 fn 上报当前全部序列
	//
	// 某次回调没有上报的标签组合不会出现在该次抓取结果中。
	GaugeFunc(name string, desc string, fn func(ctx context.Context, observe Observe), opts ...MetricOption) error

	// Handler 返回 Prometheus 抓取入口
	Handler() http.Handler

	// Shutdown 关闭 Meter，刷新所有指标
	Shutdown(ctx context.Context) error
}

// Observe 在 GaugeFunc 回调中上报一个序列的当前值
type Observe func(val float64, labels ...Label)

// MetricOption 指标配置选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit 指标单位，例如 "s"、"By"
	Unit string
	// Buckets 直方图桶边界，仅对 Histogram 生效
	Buckets []float64
}

// WithUnit 设置指标单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}

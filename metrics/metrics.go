package metrics

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/xerrors"
)

// New 创建 Meter 实例
//
// cfg.Enabled 为 false 时返回 noop Meter。
func New(cfg *Config, opts ...Option) (Meter, error) {
	if cfg == nil {
		return nil, xerrors.New("metrics config is required")
	}
	if !cfg.Enabled {
		return Discard(), nil
	}

	opt := &options{logger: clog.Discard()}
	for _, o := range opts {
		o(opt)
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "meshroute"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", cfg.Version),
	)

	// 每个 Meter 独立的 Registry，同一进程内多次 New 不会重复注册
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, xerrors.Wrap(err, "create prometheus exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	if cfg.EnableRuntime {
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			_ = mp.Shutdown(context.Background())
			return nil, xerrors.Wrap(err, "start runtime instrumentation")
		}
	}

	opt.logger.Info("meter created",
		clog.String("service_name", serviceName),
		clog.Bool("runtime", cfg.EnableRuntime))

	return &meterImpl{
		meter:    mp.Meter("github.com/ceyewan/meshroute"),
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger:   opt.logger,
	}, nil
}

// Must 类似 New，但出错时 panic
func Must(cfg *Config, opts ...Option) Meter {
	m, err := New(cfg, opts...)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}
	return m
}

type meterImpl struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	logger   clog.Logger
}

func (m *meterImpl) Counter(name string, desc string, opts ...MetricOption) (Counter, error) {
	o := applyMetricOptions(opts)
	otelOpts := []metric.Int64CounterOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	c, err := m.meter.Int64Counter(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create counter %s", name)
	}
	return &counterImpl{c: c}, nil
}

func (m *meterImpl) Gauge(name string, desc string, opts ...MetricOption) (Gauge, error) {
	o := applyMetricOptions(opts)
	otelOpts := []metric.Float64GaugeOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	g, err := m.meter.Float64Gauge(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create gauge %s", name)
	}
	return &gaugeImpl{g: g, values: make(map[string]float64)}, nil
}

func (m *meterImpl) GaugeFunc(name string, desc string, fn func(ctx context.Context, observe Observe), opts ...MetricOption) error {
	o := applyMetricOptions(opts)
	otelOpts := []metric.Float64ObservableGaugeOption{
		metric.WithDescription(desc),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			fn(ctx, func(val float64, labels ...Label) {
				obs.Observe(val, metric.WithAttributes(toAttributes(labels)...))
			})
			return nil
		}),
	}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	if _, err := m.meter.Float64ObservableGauge(name, otelOpts...); err != nil {
		return xerrors.Wrapf(err, "create gauge func %s", name)
	}
	return nil
}

func (m *meterImpl) Histogram(name string, desc string, opts ...MetricOption) (Histogram, error) {
	o := applyMetricOptions(opts)
	otelOpts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	if len(o.Buckets) > 0 {
		otelOpts = append(otelOpts, metric.WithExplicitBucketBoundaries(o.Buckets...))
	}
	h, err := m.meter.Float64Histogram(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create histogram %s", name)
	}
	return &histogramImpl{h: h}, nil
}

func (m *meterImpl) Handler() http.Handler {
	return m.handler
}

func (m *meterImpl) Shutdown(ctx context.Context) error {
	if err := m.provider.Shutdown(ctx); err != nil {
		m.logger.Warn("meter shutdown failed", clog.Error(err))
		return err
	}
	return nil
}

type counterImpl struct {
	c metric.Int64Counter
}

func (c *counterImpl) Inc(ctx context.Context, labels ...Label) {
	c.c.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (c *counterImpl) Add(ctx context.Context, val float64, labels ...Label) {
	if val < 0 {
		return
	}
	c.c.Add(ctx, int64(val), metric.WithAttributes(toAttributes(labels)...))
}

// gaugeImpl 按标签组合记录当前值，以支持 Inc/Dec
type gaugeImpl struct {
	g      metric.Float64Gauge
	values map[string]float64
	mu     sync.Mutex
}

func (g *gaugeImpl) Set(ctx context.Context, val float64, labels ...Label) {
	g.mu.Lock()
	g.values[labelKey(labels)] = val
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func (g *gaugeImpl) Inc(ctx context.Context, labels ...Label) {
	g.adjust(ctx, 1, labels)
}

func (g *gaugeImpl) Dec(ctx context.Context, labels ...Label) {
	g.adjust(ctx, -1, labels)
}

func (g *gaugeImpl) adjust(ctx context.Context, delta float64, labels []Label) {
	key := labelKey(labels)
	g.mu.Lock()
	g.values[key] += delta
	val := g.values[key]
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

type histogramImpl struct {
	h metric.Float64Histogram
}

func (h *histogramImpl) Record(ctx context.Context, val float64, labels ...Label) {
	h.h.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func applyMetricOptions(opts []MetricOption) *MetricOptions {
	o := &MetricOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}

func labelKey(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Key + "=" + l.Value
	}
	return strings.Join(parts, "|")
}

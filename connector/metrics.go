package connector

import (
	"context"

	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/xerrors"
)

// 连接器指标，按 connector（etcd/nats）与 name 区分
const (
	MetricConnectAttempts = "connector_connect_attempts_total"
	MetricConnectFailures = "connector_connect_failures_total"
	MetricActive          = "connector_active"
)

type connMetrics struct {
	attempts metrics.Counter
	failures metrics.Counter
	active   metrics.Gauge
	labels   []metrics.Label
}

func newConnMetrics(meter metrics.Meter, kind, name string) (*connMetrics, error) {
	m := &connMetrics{
		labels: []metrics.Label{metrics.L("connector", kind), metrics.L("name", name)},
	}

	var err error
	if m.attempts, err = meter.Counter(MetricConnectAttempts, "Number of connection attempts"); err != nil {
		return nil, xerrors.Wrap(err, "create attempts counter")
	}
	if m.failures, err = meter.Counter(MetricConnectFailures, "Number of failed connection attempts"); err != nil {
		return nil, xerrors.Wrap(err, "create failures counter")
	}
	if m.active, err = meter.Gauge(MetricActive, "1 when the connection is established"); err != nil {
		return nil, xerrors.Wrap(err, "create active gauge")
	}
	return m, nil
}

func (m *connMetrics) attempt(ctx context.Context) {
	m.attempts.Inc(ctx, m.labels...)
}

func (m *connMetrics) failed(ctx context.Context) {
	m.failures.Inc(ctx, m.labels...)
}

func (m *connMetrics) setActive(ctx context.Context, up bool) {
	var v float64
	if up {
		v = 1
	}
	m.active.Set(ctx, v, m.labels...)
}

package catalog

import (
	"context"

	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/xerrors"
)

// 目录指标名称
const (
	MetricActions        = "catalog_actions"
	MetricEndpoints      = "catalog_endpoints"
	MetricSelections     = "catalog_selections_total"
	MetricSelectFailures = "catalog_select_failures_total"
)

const (
	labelAction   = "action"
	labelStrategy = "strategy"
	labelReason   = "reason"

	reasonEmpty       = "empty"
	reasonUnavailable = "unavailable"
)

type catalogMetrics struct {
	actions    metrics.Gauge
	selections metrics.Counter
	failures   metrics.Counter
}

func newCatalogMetrics(meter metrics.Meter) (*catalogMetrics, error) {
	m := &catalogMetrics{}
	var err error
	if m.actions, err = meter.Gauge(MetricActions, "Number of action names with an endpoint list"); err != nil {
		return nil, xerrors.Wrap(err, "create actions gauge")
	}
	if m.selections, err = meter.Counter(MetricSelections, "Successful endpoint selections"); err != nil {
		return nil, xerrors.Wrap(err, "create selections counter")
	}
	if m.failures, err = meter.Counter(MetricSelectFailures, "Failed endpoint selections"); err != nil {
		return nil, xerrors.Wrap(err, "create select failures counter")
	}
	return m, nil
}

func (m *catalogMetrics) setActions(n int) {
	m.actions.Set(context.Background(), float64(n))
}

// observeEndpoints 在抓取时按当前列表上报端点数，已回收的 action 不再出现
func observeEndpoints(meter metrics.Meter, lists func() []*EndpointList) error {
	err := meter.GaugeFunc(MetricEndpoints, "Number of endpoints per action", func(_ context.Context, observe metrics.Observe) {
		for _, l := range lists() {
			observe(float64(l.Count()), metrics.L(labelAction, l.name))
		}
	})
	return xerrors.Wrap(err, "create endpoints gauge")
}

func (m *catalogMetrics) selected(action, strategyName string) {
	m.selections.Inc(context.Background(), metrics.L(labelAction, action), metrics.L(labelStrategy, strategyName))
}

func (m *catalogMetrics) selectFailed(action, reason string) {
	m.failures.Inc(context.Background(), metrics.L(labelAction, action), metrics.L(labelReason, reason))
}

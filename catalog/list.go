package catalog

import "github.com/ceyewan/meshroute/topology"

// ListOptions List 的过滤条件
type ListOptions struct {
	// OnlyLocal 只保留至少有一个本地端点的 action
	OnlyLocal bool `form:"onlyLocal" json:"onlyLocal"`
	// SkipInternal 排除内部 action
	SkipInternal bool `form:"skipInternal" json:"skipInternal"`
	// OnlyAvailable 只保留至少有一个可用端点的 action
	OnlyAvailable bool `form:"onlyAvailable" json:"onlyAvailable"`
	// WithEndpoints 附带每个端点的明细
	WithEndpoints bool `form:"withEndpoints" json:"withEndpoints"`
}

// ActionSummary 一个 action 的快照视图
type ActionSummary struct {
	Name      string            `json:"name"`
	Action    *topology.Action  `json:"action"`
	Available bool              `json:"available"`
	Count     int               `json:"count"`
	HasLocal  bool              `json:"hasLocal"`
	Endpoints []EndpointSummary `json:"endpoints,omitempty"`
}

// EndpointSummary 端点明细
type EndpointSummary struct {
	NodeID    string `json:"nodeID"`
	State     bool   `json:"state"`
	Available bool   `json:"available"`
}

// List 按列表创建顺序返回 action 快照，用于监控与调试，不在请求热路径上使用
func (c *Catalog) List(opts ListOptions) []ActionSummary {
	lists := c.snapshotLists()
	out := make([]ActionSummary, 0, len(lists))

	for _, l := range lists {
		if opts.SkipInternal && c.IsInternal(l.name) {
			continue
		}
		summary := l.summary(opts.WithEndpoints)
		if opts.OnlyLocal && !summary.HasLocal {
			continue
		}
		if opts.OnlyAvailable && !summary.Available {
			continue
		}
		out = append(out, summary)
	}
	return out
}

// Describe 返回单个 action 的快照，未知 action 返回 false
func (c *Catalog) Describe(name string, withEndpoints bool) (ActionSummary, bool) {
	l, ok := c.Get(name)
	if !ok {
		return ActionSummary{}, false
	}
	return l.summary(withEndpoints), true
}

func (l *EndpointList) summary(withEndpoints bool) ActionSummary {
	endpoints := l.snap.Load().endpoints
	var hasLocal, available bool
	for _, ep := range endpoints {
		hasLocal = hasLocal || ep.Local()
		available = available || ep.Available()
	}

	summary := ActionSummary{
		Name:      l.name,
		Action:    l.Action(),
		Available: available,
		Count:     len(endpoints),
		HasLocal:  hasLocal,
	}
	if withEndpoints {
		summary.Endpoints = make([]EndpointSummary, len(endpoints))
		for i, ep := range endpoints {
			summary.Endpoints[i] = EndpointSummary{
				NodeID:    ep.nodeID,
				State:     ep.State(),
				Available: ep.Available(),
			}
		}
	}
	return summary
}

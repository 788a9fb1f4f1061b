package catalog

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/strategy"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// EndpointList 一个 action 名称下的所有端点，以及选择它们的策略
//
// 每个节点最多一个端点。写操作由列表互斥锁串行化，并以写时复制的方式发布新快照；
// Select 等读操作只加载快照，不加锁。策略实例在列表创建时确定，之后不再替换。
type EndpointList struct {
	name         string
	seq          uint64
	nodes        topology.NodeLookup
	strategy     strategy.Strategy
	strategyName string
	logger       clog.Logger
	metrics      *catalogMetrics
	emptyWarn    rate.Sometimes

	mu     sync.Mutex
	dead   bool
	snap   atomic.Pointer[snapshot]
	action atomic.Pointer[topology.Action]
}

// snapshot 不可变的端点集合，views 与 endpoints 一一对应
type snapshot struct {
	endpoints []*Endpoint
	views     []strategy.Endpoint
}

var emptySnapshot = &snapshot{}

func newSnapshot(endpoints []*Endpoint) *snapshot {
	if len(endpoints) == 0 {
		return emptySnapshot
	}
	views := make([]strategy.Endpoint, len(endpoints))
	for i, ep := range endpoints {
		views[i] = ep
	}
	return &snapshot{endpoints: endpoints, views: views}
}

func newEndpointList(name string, seq uint64, nodes topology.NodeLookup, s strategy.Strategy, strategyName string,
	logger clog.Logger, m *catalogMetrics) *EndpointList {
	l := &EndpointList{
		name:         name,
		seq:          seq,
		nodes:        nodes,
		strategy:     s,
		strategyName: strategyName,
		logger:       logger.With(clog.String("action", name)),
		metrics:      m,
		emptyWarn:    rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	l.snap.Store(emptySnapshot)
	return l
}

// Name action 名称
func (l *EndpointList) Name() string { return l.name }

// Strategy 列表持有的策略实例
func (l *EndpointList) Strategy() strategy.Strategy { return l.strategy }

// StrategyName 创建策略时使用的名称
func (l *EndpointList) StrategyName() string { return l.strategyName }

// Action 最近一次注册的 action 描述
func (l *EndpointList) Action() *topology.Action { return l.action.Load() }

// Add 绑定节点上的服务与 action，同一节点已存在端点时原地更新，返回列表本身
func (l *EndpointList) Add(node *topology.Node, svc *topology.Service, action *topology.Action) *EndpointList {
	l.add(node.ID(), svc, action)
	return l
}

// add 返回 false 表示列表已被目录回收，调用方需要重新获取列表
func (l *EndpointList) add(nodeID string, svc *topology.Service, action *topology.Action) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dead {
		return false
	}
	l.action.Store(action)

	cur := l.snap.Load()
	for _, ep := range cur.endpoints {
		if ep.nodeID == nodeID {
			ep.bind(svc, action)
			return true
		}
	}

	next := make([]*Endpoint, len(cur.endpoints), len(cur.endpoints)+1)
	copy(next, cur.endpoints)
	next = append(next, newEndpoint(l.nodes, nodeID, svc, action))
	l.publish(next)
	l.logger.Debug("endpoint added", clog.String("node_id", nodeID), clog.Int("count", len(next)))
	return true
}

// publish 发布新快照，调用方持有 l.mu
func (l *EndpointList) publish(endpoints []*Endpoint) {
	l.snap.Store(newSnapshot(endpoints))
}

// removeWhere 删除满足条件的端点，返回删除数量
func (l *EndpointList) removeWhere(match func(*Endpoint) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.snap.Load()
	next := make([]*Endpoint, 0, len(cur.endpoints))
	for _, ep := range cur.endpoints {
		if !match(ep) {
			next = append(next, ep)
		}
	}
	removed := len(cur.endpoints) - len(next)
	if removed > 0 {
		l.publish(next)
	}
	return removed
}

// RemoveByNodeID 删除节点上的端点，不存在时为空操作
func (l *EndpointList) RemoveByNodeID(nodeID string) bool {
	removed := l.removeWhere(func(ep *Endpoint) bool { return ep.nodeID == nodeID }) > 0
	if removed {
		l.logger.Debug("endpoint removed", clog.String("node_id", nodeID))
	}
	return removed
}

// RemoveByService 删除绑定到该服务实例（同一指针或相同 Key）的所有端点，返回删除数量
func (l *EndpointList) RemoveByService(svc *topology.Service) int {
	return l.removeWhere(func(ep *Endpoint) bool { return ep.Service().Same(svc) })
}

// Select 交给策略从全部端点中选择一个，不跳过不可用端点
func (l *EndpointList) Select() (*Endpoint, error) {
	s := l.snap.Load()
	if len(s.views) == 0 {
		l.metrics.selectFailed(l.name, reasonEmpty)
		l.emptyWarn.Do(func() {
			l.logger.Warn("select on empty endpoint list")
		})
		return nil, xerrors.WithCode(ErrEmptyEndpointList, CodeEmptyEndpointList)
	}
	return l.pick(s.views)
}

// SelectAvailable 只在可用端点中选择
func (l *EndpointList) SelectAvailable() (*Endpoint, error) {
	s := l.snap.Load()
	if len(s.views) == 0 {
		l.metrics.selectFailed(l.name, reasonEmpty)
		return nil, xerrors.WithCode(ErrEmptyEndpointList, CodeEmptyEndpointList)
	}

	available := make([]strategy.Endpoint, 0, len(s.views))
	for _, v := range s.views {
		if v.Available() {
			available = append(available, v)
		}
	}
	if len(available) == 0 {
		l.metrics.selectFailed(l.name, reasonUnavailable)
		return nil, xerrors.WithCode(ErrNoAvailableEndpoint, CodeNoAvailableEndpoint)
	}
	return l.pick(available)
}

func (l *EndpointList) pick(candidates []strategy.Endpoint) (*Endpoint, error) {
	ep, ok := l.strategy.Select(candidates).(*Endpoint)
	if !ok || ep == nil {
		l.metrics.selectFailed(l.name, reasonUnavailable)
		return nil, xerrors.WithCode(ErrNoAvailableEndpoint, CodeNoAvailableEndpoint)
	}
	l.metrics.selected(l.name, l.strategyName)
	return ep, nil
}

// HasAvailable 至少有一个端点可用
func (l *EndpointList) HasAvailable() bool {
	for _, ep := range l.snap.Load().endpoints {
		if ep.Available() {
			return true
		}
	}
	return false
}

// HasLocal 至少有一个端点位于本地节点
func (l *EndpointList) HasLocal() bool {
	for _, ep := range l.snap.Load().endpoints {
		if ep.Local() {
			return true
		}
	}
	return false
}

// Count 端点数量
func (l *EndpointList) Count() int {
	return len(l.snap.Load().endpoints)
}

// Endpoints 当前端点的拷贝，按加入顺序
func (l *EndpointList) Endpoints() []*Endpoint {
	eps := l.snap.Load().endpoints
	out := make([]*Endpoint, len(eps))
	copy(out, eps)
	return out
}

// EndpointByNodeID 查找节点上的端点
func (l *EndpointList) EndpointByNodeID(nodeID string) (*Endpoint, bool) {
	for _, ep := range l.snap.Load().endpoints {
		if ep.nodeID == nodeID {
			return ep, true
		}
	}
	return nil, false
}

// markDeadIfEmpty 列表为空时标记为已回收，调用方持有目录写锁
func (l *EndpointList) markDeadIfEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.snap.Load().endpoints) > 0 {
		return false
	}
	l.dead = true
	return true
}

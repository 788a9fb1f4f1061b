package catalog

import (
	"sync/atomic"

	"github.com/ceyewan/meshroute/topology"
)

// Endpoint 一个 action 在一个节点上的绑定
//
// Endpoint 不持有节点本身，每次查询状态都通过 NodeLookup 按 ID 读取；
// 节点从拓扑中移除后 Endpoint 立即变为不可用。
// 服务与 action 描述在同一节点重新注册时原子替换。
type Endpoint struct {
	nodeID  string
	nodes   topology.NodeLookup
	binding atomic.Pointer[binding]
}

type binding struct {
	service *topology.Service
	action  *topology.Action
}

func newEndpoint(nodes topology.NodeLookup, nodeID string, svc *topology.Service, action *topology.Action) *Endpoint {
	ep := &Endpoint{nodeID: nodeID, nodes: nodes}
	ep.bind(svc, action)
	return ep
}

func (e *Endpoint) bind(svc *topology.Service, action *topology.Action) {
	e.binding.Store(&binding{service: svc, action: action})
}

func (e *Endpoint) NodeID() string { return e.nodeID }

// Node 从拓扑中查找所在节点
func (e *Endpoint) Node() (*topology.Node, bool) {
	return e.nodes.Node(e.nodeID)
}

func (e *Endpoint) Service() *topology.Service { return e.binding.Load().service }

func (e *Endpoint) Action() *topology.Action { return e.binding.Load().action }

// Available 节点存在、可达且未降级
func (e *Endpoint) Available() bool {
	n, ok := e.Node()
	return ok && n.Available()
}

// State 节点存在且可达，不考虑降级
func (e *Endpoint) State() bool {
	n, ok := e.Node()
	return ok && n.Reachable()
}

// Local 是否位于本地节点
func (e *Endpoint) Local() bool {
	n, ok := e.Node()
	return ok && n.IsLocal()
}

// CPUUsage 节点最近 samples 个 CPU 样本的平均值
func (e *Endpoint) CPUUsage(samples int) (float64, bool) {
	n, ok := e.Node()
	if !ok {
		return 0, false
	}
	return n.CPU().Average(samples)
}

func (e *Endpoint) String() string {
	return e.Action().Name + "@" + e.nodeID
}

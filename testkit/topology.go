package testkit

import (
	"github.com/ceyewan/meshroute/topology"
)

// NewTable 返回以 localID 为本地节点的节点表，并加入 remoteIDs 中的远程节点
func NewTable(localID string, remoteIDs ...string) *topology.Table {
	table := topology.NewTable(topology.NewNode(localID, topology.AsLocal()))
	for _, id := range remoteIDs {
		table.Add(topology.NewNode(id))
	}
	return table
}

// NewService 返回节点上的一个服务
func NewService(nodeID, name string) *topology.Service {
	return &topology.Service{Name: name, NodeID: nodeID}
}

// NewAction 返回使用默认策略的 action
func NewAction(name string) *topology.Action {
	return &topology.Action{Name: name}
}

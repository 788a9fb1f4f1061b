package discovery

import (
	"context"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/topology"
)

// serviceState 已应用到目录中的一个服务实例
type serviceState struct {
	service *topology.Service
	actions map[string]struct{}
}

// applyPut 将节点描述同步到节点表与目录
//
// 节点标记为可达；不再出现的服务整体移除，仍存在的服务中被去掉的 action 按节点移除，
// 其余 action 全部重新 Add（同一节点重复 Add 只更新端点）。
func (d *Discovery) applyPut(info *NodeInfo) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	node := d.table.Add(topology.NewNode(info.ID, topology.WithHostname(info.Hostname)))

	prev := d.state[info.ID]
	next := make(map[string]*serviceState, len(info.Services))
	order := make([]*serviceState, 0, len(info.Services))
	for _, si := range info.Services {
		svc := &topology.Service{
			Name:     si.Name,
			Version:  si.Version,
			NodeID:   info.ID,
			Settings: si.Settings,
			Metadata: si.Metadata,
		}
		st := &serviceState{service: svc, actions: make(map[string]struct{}, len(si.Actions))}
		for i := range si.Actions {
			st.actions[si.Actions[i].Name] = struct{}{}
		}
		next[svc.Key()] = st
		order = append(order, st)
	}

	for key, old := range prev {
		cur, ok := next[key]
		if !ok {
			d.catalog.RemoveByService(old.service)
			continue
		}
		for name := range old.actions {
			if _, still := cur.actions[name]; !still {
				d.catalog.Remove(name, info.ID)
			}
		}
	}

	for i, si := range info.Services {
		st := order[i]
		for j := range si.Actions {
			action := si.Actions[j]
			if _, err := d.catalog.Add(node, st.service, &action); err != nil {
				d.logger.Error("register action failed",
					clog.String("node_id", info.ID),
					clog.String("action", action.Name),
					clog.Error(err))
			}
		}
	}

	d.state[info.ID] = next
	d.events.Inc(context.Background(), metrics.L("type", "put"))
	d.logger.Debug("node applied",
		clog.String("node_id", info.ID),
		clog.Int("services", len(info.Services)),
		clog.Uint64("seq", info.Seq))
}

// applyDelete 节点下线：移除它的全部端点，远程节点从节点表中删除
func (d *Discovery) applyDelete(nodeID string) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if node, ok := d.table.Get(nodeID); ok && !node.IsLocal() {
		node.SetReachable(false)
	}
	removed := d.catalog.RemoveByNodeID(nodeID)
	delete(d.state, nodeID)

	if nodeID != d.table.LocalID() {
		d.table.Remove(nodeID)
	}

	d.events.Inc(context.Background(), metrics.L("type", "delete"))
	d.logger.Info("node left",
		clog.String("node_id", nodeID),
		clog.Int("endpoints_removed", removed))
}

// resync 用一次完整快照替换当前状态：逐个应用快照中的节点，删除快照中不存在的节点
func (d *Discovery) resync(infos []*NodeInfo) {
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		seen[info.ID] = struct{}{}
		d.applyPut(info)
	}

	d.stateMu.Lock()
	var stale []string
	for id := range d.state {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	d.stateMu.Unlock()

	for _, id := range stale {
		d.applyDelete(id)
	}
	d.events.Inc(context.Background(), metrics.L("type", "resync"))
}

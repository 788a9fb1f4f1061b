// Package catalog 是 action 路由目录：给定 action 名称，找到当前暴露它的节点并按策略选出一个。
//
// Catalog 维护 action 名称到 EndpointList 的映射，由拓扑变更方（discovery）调用 Add / Remove /
// RemoveByService 维护，由请求分发方调用 Get / IsAvailable 后在列表上 Select。
// 目录是显式构造的对象，没有进程级单例；所有操作都不做 I/O，不会阻塞。
//
// 基本使用：
//
//	nodes := topology.NewTable(topology.NewNode(topology.GenerateNodeID(), topology.AsLocal()))
//	cat, err := catalog.New(catalog.DefaultConfig(), nodes,
//		catalog.WithLogger(logger),
//		catalog.WithMeter(meter),
//	)
//
//	cat.Add(nodes.Local(), svc, &topology.Action{Name: "users.get"})
//
//	if list, ok := cat.Get("users.get"); ok {
//		ep, err := list.Select()
//		...
//	}
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/strategy"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// Catalog action 名称到 EndpointList 的映射
//
// 锁顺序：目录锁先于列表锁。不同 action 的 Add 只在创建列表时竞争目录写锁。
type Catalog struct {
	cfg            *Config
	nodes          topology.NodeLookup
	registry       *strategy.Registry
	defaultFactory strategy.Factory
	logger         clog.Logger
	metrics        *catalogMetrics

	mu    sync.RWMutex
	lists map[string]*EndpointList
	seq   uint64
}

// New 创建目录
//
// nodes 用于端点按节点 ID 查询状态，通常是 *topology.Table。
func New(cfg *Config, nodes topology.NodeLookup, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if nodes == nil {
		return nil, xerrors.Mark(xerrors.New("node lookup is required"), xerrors.ErrInvalidInput)
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}
	if opt.registry == nil {
		opt.registry = strategy.NewRegistry()
	}
	if err := cfg.validate(opt.registry); err != nil {
		return nil, err
	}

	m, err := newCatalogMetrics(opt.meter)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		cfg:            cfg,
		nodes:          nodes,
		registry:       opt.registry,
		defaultFactory: opt.defaultFactory,
		logger:         opt.logger,
		metrics:        m,
		lists:          make(map[string]*EndpointList),
	}
	if c.defaultFactory == nil {
		name, reg := cfg.DefaultStrategy, opt.registry
		c.defaultFactory = func(o strategy.Options) (strategy.Strategy, error) {
			return reg.New(name, o)
		}
	}
	if err := observeEndpoints(opt.meter, c.snapshotLists); err != nil {
		return nil, err
	}
	return c, nil
}

// Add 注册节点上某个服务暴露的 action，返回该 action 的列表
//
// 列表不存在时按 action 声明的策略（否则使用默认策略）创建；策略无法构造时返回
// ErrStrategyConstruction，不会创建列表。节点不在 NodeLookup 中时返回 xerrors.ErrNotFound。
// 同一节点重复注册只更新已有端点。
func (c *Catalog) Add(node *topology.Node, svc *topology.Service, action *topology.Action) (*EndpointList, error) {
	if node == nil || svc == nil || action == nil {
		return nil, xerrors.Mark(xerrors.New("node, service and action are required"), xerrors.ErrInvalidInput)
	}
	if action.Name == "" {
		return nil, xerrors.Mark(xerrors.New("action name is empty"), xerrors.ErrInvalidInput)
	}
	if _, ok := c.nodes.Node(node.ID()); !ok {
		return nil, xerrors.Mark(xerrors.Errorf("node %q is not in the node table", node.ID()), xerrors.ErrNotFound)
	}

	for {
		list, err := c.getOrCreate(action)
		if err != nil {
			return nil, err
		}
		if list.add(node.ID(), svc, action) {
			return list, nil
		}
		// 列表在获取之后被回收，重新获取
	}
}

func (c *Catalog) getOrCreate(action *topology.Action) (*EndpointList, error) {
	c.mu.RLock()
	list, ok := c.lists[action.Name]
	c.mu.RUnlock()
	if ok {
		return list, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.lists[action.Name]; ok {
		return list, nil
	}

	s, name, err := c.newStrategy(action)
	if err != nil {
		c.logger.Error("create strategy failed",
			clog.String("action", action.Name),
			clog.String("strategy", action.Strategy),
			clog.ErrorWithCode(err, CodeStrategyConstruction))
		return nil, xerrors.Mark(xerrors.Wrapf(err, "action %q", action.Name), ErrStrategyConstruction)
	}

	c.seq++
	list = newEndpointList(action.Name, c.seq, c.nodes, s, name, c.logger, c.metrics)
	c.lists[action.Name] = list
	c.metrics.setActions(len(c.lists))
	c.logger.Debug("endpoint list created", clog.String("action", action.Name), clog.String("strategy", name))
	return list, nil
}

func (c *Catalog) newStrategy(action *topology.Action) (strategy.Strategy, string, error) {
	opts := strategy.Options(action.StrategyOptions)
	if action.Strategy != "" {
		if opts == nil {
			opts = strategy.Options{}
		}
		s, err := c.registry.New(action.Strategy, opts)
		return s, action.Strategy, err
	}

	if len(opts) == 0 {
		opts = strategy.Options{}
		for k, v := range c.cfg.DefaultStrategyOptions {
			opts[k] = v
		}
	}
	s, err := c.defaultFactory(opts)
	if err == nil && s == nil {
		err = xerrors.New("default strategy factory returned nil")
	}
	return s, c.cfg.DefaultStrategy, err
}

// Get 查找 action 的列表
func (c *Catalog) Get(name string) (*EndpointList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.lists[name]
	return list, ok
}

// IsAvailable action 存在且至少一个端点可用；未知 action 返回 false
func (c *Catalog) IsAvailable(name string) bool {
	list, ok := c.Get(name)
	return ok && list.HasAvailable()
}

// Remove 删除 action 在某节点上的端点；未知 action 为空操作，不会创建列表
func (c *Catalog) Remove(name, nodeID string) {
	list, ok := c.Get(name)
	if !ok {
		return
	}
	if list.RemoveByNodeID(nodeID) {
		c.evictIfEmpty(list)
	}
}

// RemoveByService 从所有列表中删除该服务实例的端点，返回删除的端点数
func (c *Catalog) RemoveByService(svc *topology.Service) int {
	if svc == nil {
		return 0
	}
	var total int
	for _, list := range c.snapshotLists() {
		if n := list.RemoveByService(svc); n > 0 {
			total += n
			c.evictIfEmpty(list)
		}
	}
	if total > 0 {
		c.logger.Debug("service endpoints removed", clog.String("service", svc.Key()), clog.Int("count", total))
	}
	return total
}

// RemoveByNodeID 从所有列表中删除该节点的端点，返回删除的端点数
func (c *Catalog) RemoveByNodeID(nodeID string) int {
	var total int
	for _, list := range c.snapshotLists() {
		if list.RemoveByNodeID(nodeID) {
			total++
			c.evictIfEmpty(list)
		}
	}
	return total
}

// evictIfEmpty 列表为空时从目录中移除，RetainEmpty 时保留
func (c *Catalog) evictIfEmpty(list *EndpointList) {
	if c.cfg.RetainEmpty {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lists[list.name] != list {
		return
	}
	if list.markDeadIfEmpty() {
		delete(c.lists, list.name)
		c.metrics.setActions(len(c.lists))
		c.logger.Debug("empty endpoint list evicted", clog.String("action", list.name))
	}
}

// snapshotLists 按创建顺序返回当前所有列表
func (c *Catalog) snapshotLists() []*EndpointList {
	c.mu.RLock()
	lists := make([]*EndpointList, 0, len(c.lists))
	for _, l := range c.lists {
		lists = append(lists, l)
	}
	c.mu.RUnlock()

	slices.SortFunc(lists, func(a, b *EndpointList) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return lists
}

// Count action 列表数
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists)
}

// IsInternal 名称是否带内部 action 前缀
func (c *Catalog) IsInternal(name string) bool {
	return strings.HasPrefix(name, c.cfg.InternalPrefix)
}

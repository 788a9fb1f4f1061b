package catalog

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/meshroute/strategy"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

type fixture struct {
	t     *testing.T
	table *topology.Table
	cat   *Catalog
}

func newFixture(t *testing.T, cfg *Config, opts ...Option) *fixture {
	t.Helper()
	table := topology.NewTable(topology.NewNode("local", topology.AsLocal()))
	cat, err := New(cfg, table, opts...)
	require.NoError(t, err)
	return &fixture{t: t, table: table, cat: cat}
}

// node 返回表中的节点，不存在时创建一个远程节点
func (f *fixture) node(id string) *topology.Node {
	if n, ok := f.table.Get(id); ok {
		return n
	}
	return f.table.Add(topology.NewNode(id))
}

func (f *fixture) add(nodeID, service string, action *topology.Action) *EndpointList {
	f.t.Helper()
	list, err := f.cat.Add(f.node(nodeID), svc(nodeID, service), action)
	require.NoError(f.t, err)
	return list
}

func svc(nodeID, name string) *topology.Service {
	return &topology.Service{Name: name, NodeID: nodeID}
}

func act(name string) *topology.Action {
	return &topology.Action{Name: name}
}

func selectIDs(t *testing.T, list *EndpointList, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		ep, err := list.Select()
		require.NoError(t, err)
		out[i] = ep.NodeID()
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("nil 配置使用默认值", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Equal(t, "$", f.cat.cfg.InternalPrefix)
		assert.Equal(t, strategy.NameRoundRobin, f.cat.cfg.DefaultStrategy)
	})

	t.Run("缺少 NodeLookup", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("未知默认策略", func(t *testing.T) {
		_, err := New(&Config{DefaultStrategy: "Sharded"}, topology.NewTable(nil))
		assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
	})
}

func TestCatalog_Add(t *testing.T) {
	t.Run("不同节点各一个端点，与顺序无关", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, id := range []string{"n3", "n1", "n2", "n1", "n3"} {
			f.add(id, "users", act("users.get"))
		}
		list, ok := f.cat.Get("users.get")
		require.True(t, ok)
		assert.Equal(t, 3, list.Count())
		assert.Equal(t, 1, f.cat.Count())
	})

	t.Run("重复注册原地更新，列表与策略不变", func(t *testing.T) {
		f := newFixture(t, nil)
		first := f.add("n1", "users", act("users.get"))
		strat := first.Strategy()
		ep, ok := first.EndpointByNodeID("n1")
		require.True(t, ok)

		newSvc := &topology.Service{Name: "users", Version: "2", NodeID: "n1"}
		newAction := &topology.Action{Name: "users.get", Cache: true}
		second, err := f.cat.Add(f.node("n1"), newSvc, newAction)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Same(t, strat, second.Strategy())
		assert.Equal(t, 1, second.Count())

		again, _ := second.EndpointByNodeID("n1")
		assert.Same(t, ep, again, "端点被原地更新")
		assert.Same(t, newSvc, again.Service())
		assert.Same(t, newAction, again.Action())
		assert.Same(t, newAction, second.Action())
	})

	t.Run("参数校验", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.cat.Add(nil, svc("n1", "users"), act("users.get"))
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		_, err = f.cat.Add(f.node("n1"), svc("n1", "users"), act(""))
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		assert.Zero(t, f.cat.Count())
	})

	t.Run("节点不在节点表中", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.cat.Add(topology.NewNode("remote-1"), svc("remote-1", "users"), act("users.get"))
		require.Error(t, err)
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
		assert.Zero(t, f.cat.Count())
		_, ok := f.cat.Get("users.get")
		assert.False(t, ok)
	})
}

func TestCatalog_Strategy(t *testing.T) {
	t.Run("默认策略为轮询", func(t *testing.T) {
		f := newFixture(t, nil)
		list := f.add("n1", "users", act("users.get"))
		assert.IsType(t, &strategy.RoundRobin{}, list.Strategy())
		assert.Equal(t, strategy.NameRoundRobin, list.StrategyName())
	})

	t.Run("action 声明的策略与配置", func(t *testing.T) {
		f := newFixture(t, nil)
		list := f.add("n1", "users", &topology.Action{
			Name:            "users.find",
			Strategy:        "CpuUsage",
			StrategyOptions: map[string]any{"sampleCount": 6, "lowCpuUsage": 25},
		})
		require.IsType(t, &strategy.CPUUsage{}, list.Strategy())
		assert.Equal(t, strategy.CPUUsageOptions{SampleCount: 6, LowCPUUsage: 25},
			list.Strategy().(*strategy.CPUUsage).Opts())
	})

	t.Run("默认策略配置", func(t *testing.T) {
		f := newFixture(t, &Config{
			DefaultStrategy:        strategy.NameCPUUsage,
			DefaultStrategyOptions: map[string]any{"lowCpuUsage": 40},
		})
		list := f.add("n1", "users", act("users.get"))
		require.IsType(t, &strategy.CPUUsage{}, list.Strategy())
		assert.Equal(t, 40.0, list.Strategy().(*strategy.CPUUsage).Opts().LowCPUUsage)
	})

	t.Run("首次注册决定策略", func(t *testing.T) {
		f := newFixture(t, nil)
		list := f.add("n1", "users", act("users.get"))
		f.add("n2", "users", &topology.Action{Name: "users.get", Strategy: "Random"})
		assert.IsType(t, &strategy.RoundRobin{}, list.Strategy())
	})

	t.Run("未知策略在 Add 时报错且不创建列表", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.cat.Add(f.node("n1"), svc("n1", "users"), &topology.Action{Name: "users.get", Strategy: "Sharded"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStrategyConstruction)
		assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
		_, ok := f.cat.Get("users.get")
		assert.False(t, ok)
	})

	t.Run("策略配置无效", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.cat.Add(f.node("n1"), svc("n1", "users"), &topology.Action{
			Name:            "users.get",
			Strategy:        "CpuUsage",
			StrategyOptions: map[string]any{"sampleCount": -1},
		})
		assert.ErrorIs(t, err, ErrStrategyConstruction)
		assert.ErrorIs(t, err, strategy.ErrInvalidOptions)
	})

	t.Run("自定义注册表与默认工厂", func(t *testing.T) {
		reg := strategy.NewRegistry()
		calls := 0
		f := newFixture(t, nil, WithRegistry(reg), WithDefaultFactory(func(strategy.Options) (strategy.Strategy, error) {
			calls++
			return strategy.NewRandom(), nil
		}))
		f.add("n1", "users", act("users.get"))
		f.add("n2", "users", act("users.get"))
		f.add("n1", "users", act("users.list"))
		assert.Equal(t, 2, calls, "每个列表只构造一次策略")
	})
}

func TestCatalog_IsAvailable(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.cat.IsAvailable("users.get"), "未注册的 action")

	f.add("n1", "users", act("users.get"))
	f.add("n2", "users", act("users.get"))
	assert.True(t, f.cat.IsAvailable("users.get"))

	f.node("n1").SetReachable(false)
	assert.True(t, f.cat.IsAvailable("users.get"))

	f.node("n2").SetDegraded(true)
	assert.False(t, f.cat.IsAvailable("users.get"), "所有节点都不可用")

	f.node("n2").SetDegraded(false)
	assert.True(t, f.cat.IsAvailable("users.get"))

	f.table.Remove("n2")
	assert.False(t, f.cat.IsAvailable("users.get"), "节点离开拓扑后端点不可用")
}

func TestCatalog_Remove(t *testing.T) {
	t.Run("未知 action 为空操作", func(t *testing.T) {
		f := newFixture(t, nil)
		f.cat.Remove("users.get", "n1")
		_, ok := f.cat.Get("users.get")
		assert.False(t, ok)
	})

	t.Run("删除节点端点，最后一个删除后回收列表", func(t *testing.T) {
		f := newFixture(t, nil)
		f.add("n1", "users", act("users.get"))
		f.add("n2", "users", act("users.get"))

		f.cat.Remove("users.get", "n1")
		list, ok := f.cat.Get("users.get")
		require.True(t, ok)
		assert.Equal(t, 1, list.Count())

		f.cat.Remove("users.get", "missing")
		assert.Equal(t, 1, list.Count())

		f.cat.Remove("users.get", "n2")
		_, ok = f.cat.Get("users.get")
		assert.False(t, ok)
		assert.Zero(t, f.cat.Count())

		relisted := f.add("n1", "users", act("users.get"))
		assert.NotSame(t, list, relisted, "回收后重新注册创建新列表")
		assert.Equal(t, 1, relisted.Count())
	})

	t.Run("RetainEmpty 保留空列表", func(t *testing.T) {
		f := newFixture(t, &Config{RetainEmpty: true})
		list := f.add("n1", "users", act("users.get"))
		f.cat.Remove("users.get", "n1")

		kept, ok := f.cat.Get("users.get")
		require.True(t, ok)
		assert.Same(t, list, kept)
		assert.Zero(t, kept.Count())

		f.add("n2", "users", act("users.get"))
		assert.Equal(t, 1, kept.Count())
	})

	t.Run("按节点删除所有 action", func(t *testing.T) {
		f := newFixture(t, nil)
		f.add("n1", "users", act("users.get"))
		f.add("n1", "posts", act("posts.get"))
		f.add("n2", "posts", act("posts.get"))

		assert.Equal(t, 2, f.cat.RemoveByNodeID("n1"))
		_, ok := f.cat.Get("users.get")
		assert.False(t, ok)
		list, ok := f.cat.Get("posts.get")
		require.True(t, ok)
		assert.Equal(t, 1, list.Count())
	})
}

func TestCatalog_RemoveByService(t *testing.T) {
	f := newFixture(t, nil)
	users1 := svc("n1", "users")
	users2 := svc("n2", "users")

	_, err := f.cat.Add(f.node("n1"), users1, act("users.get"))
	require.NoError(t, err)
	_, err = f.cat.Add(f.node("n1"), users1, act("users.list"))
	require.NoError(t, err)
	_, err = f.cat.Add(f.node("n2"), users2, act("users.get"))
	require.NoError(t, err)
	f.add("n1", "posts", act("posts.get"))

	// 键相同的另一个实例同样匹配
	removed := f.cat.RemoveByService(&topology.Service{Name: "users", NodeID: "n1"})
	assert.Equal(t, 2, removed)

	get, ok := f.cat.Get("users.get")
	require.True(t, ok)
	assert.Equal(t, 1, get.Count())
	_, ok = get.EndpointByNodeID("n2")
	assert.True(t, ok)

	_, ok = f.cat.Get("users.list")
	assert.False(t, ok, "清空的列表被回收")

	posts, ok := f.cat.Get("posts.get")
	require.True(t, ok)
	assert.Equal(t, 1, posts.Count(), "无关的 action 不受影响")

	assert.Zero(t, f.cat.RemoveByService(nil))
	assert.Zero(t, f.cat.RemoveByService(svc("n9", "users")))

	t.Run("不同版本是不同服务", func(t *testing.T) {
		f := newFixture(t, nil)
		f.add("n1", "users", act("users.get"))
		assert.Zero(t, f.cat.RemoveByService(&topology.Service{Name: "users", Version: "2", NodeID: "n1"}))
	})
}

func TestCatalog_List(t *testing.T) {
	f := newFixture(t, nil)
	f.add("local", "users", act("users.get"))
	f.add("n1", "users", act("users.get"))
	f.add("n1", "posts", act("posts.get"))
	f.add("local", "$node", act("$node.list"))
	f.node("n1").SetReachable(false)

	t.Run("无过滤", func(t *testing.T) {
		got := f.cat.List(ListOptions{})
		require.Len(t, got, 3)
		assert.Equal(t, []string{"users.get", "posts.get", "$node.list"},
			[]string{got[0].Name, got[1].Name, got[2].Name}, "按创建顺序")

		assert.Equal(t, 2, got[0].Count)
		assert.True(t, got[0].HasLocal)
		assert.True(t, got[0].Available)
		assert.Nil(t, got[0].Endpoints)

		assert.Equal(t, 1, got[1].Count)
		assert.False(t, got[1].HasLocal)
		assert.False(t, got[1].Available)
		assert.Equal(t, "posts.get", got[1].Action.Name)
	})

	t.Run("OnlyLocal", func(t *testing.T) {
		for _, s := range f.cat.List(ListOptions{OnlyLocal: true}) {
			assert.True(t, s.HasLocal)
		}
		assert.Len(t, f.cat.List(ListOptions{OnlyLocal: true}), 2)
	})

	t.Run("OnlyAvailable", func(t *testing.T) {
		got := f.cat.List(ListOptions{OnlyAvailable: true})
		assert.Len(t, got, 2)
		for _, s := range got {
			assert.True(t, s.Available)
		}
	})

	t.Run("SkipInternal", func(t *testing.T) {
		got := f.cat.List(ListOptions{SkipInternal: true})
		require.Len(t, got, 2)
		for _, s := range got {
			assert.NotEqual(t, "$node.list", s.Name)
		}
	})

	t.Run("自定义内部前缀", func(t *testing.T) {
		g := newFixture(t, &Config{InternalPrefix: "internal."})
		g.add("local", "x", act("internal.health"))
		g.add("local", "x", act("$node.list"))
		got := g.cat.List(ListOptions{SkipInternal: true})
		require.Len(t, got, 1)
		assert.Equal(t, "$node.list", got[0].Name)
	})

	t.Run("WithEndpoints", func(t *testing.T) {
		got := f.cat.List(ListOptions{WithEndpoints: true, SkipInternal: true})
		require.Len(t, got, 2)
		assert.Equal(t, []EndpointSummary{
			{NodeID: "local", State: true, Available: true},
			{NodeID: "n1", State: false, Available: false},
		}, got[0].Endpoints)

		f.node("n1").SetReachable(true)
		f.node("n1").SetDegraded(true)
		defer func() {
			f.node("n1").SetDegraded(false)
			f.node("n1").SetReachable(false)
		}()
		got = f.cat.List(ListOptions{WithEndpoints: true})
		assert.Equal(t, EndpointSummary{NodeID: "n1", State: true, Available: false}, got[1].Endpoints[0],
			"降级节点仍在线但不可用")
	})

	t.Run("JSON 结构", func(t *testing.T) {
		got := f.cat.List(ListOptions{WithEndpoints: true, SkipInternal: true})
		raw, err := json.Marshal(got[0])
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.ElementsMatch(t, []string{"name", "action", "available", "count", "hasLocal", "endpoints"}, keys(m))

		ep := m["endpoints"].([]any)[0].(map[string]any)
		assert.ElementsMatch(t, []string{"nodeID", "state", "available"}, keys(ep))
		assert.Equal(t, "users.get", m["action"].(map[string]any)["name"])

		raw, err = json.Marshal(f.cat.List(ListOptions{})[0])
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "endpoints")
	})

	t.Run("Describe", func(t *testing.T) {
		s, ok := f.cat.Describe("users.get", true)
		require.True(t, ok)
		assert.Equal(t, 2, s.Count)
		assert.Len(t, s.Endpoints, 2)

		_, ok = f.cat.Describe("missing", false)
		assert.False(t, ok)
	})
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestEndpointList_Select(t *testing.T) {
	t.Run("轮询与收缩", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, id := range []string{"A", "B", "C"} {
			f.add(id, "users", act("users.get"))
		}
		list, _ := f.cat.Get("users.get")
		assert.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, selectIDs(t, list, 6))

		f.cat.Remove("users.get", "B")
		got := selectIDs(t, list, 4)
		assert.ElementsMatch(t, []string{"A", "C", "A", "C"}, got)
		assert.NotEqual(t, got[0], got[1])
	})

	t.Run("不跳过不可用端点", func(t *testing.T) {
		f := newFixture(t, nil)
		f.add("A", "users", act("users.get"))
		f.node("A").SetReachable(false)
		list, _ := f.cat.Get("users.get")

		ep, err := list.Select()
		require.NoError(t, err)
		assert.Equal(t, "A", ep.NodeID())
		assert.False(t, ep.Available())

		_, err = list.SelectAvailable()
		assert.ErrorIs(t, err, ErrNoAvailableEndpoint)
		assert.Equal(t, CodeNoAvailableEndpoint, xerrors.GetCode(err))
	})

	t.Run("SelectAvailable 只选可用端点", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, id := range []string{"A", "B", "C"} {
			f.add(id, "users", act("users.get"))
		}
		f.node("B").SetDegraded(true)
		list, _ := f.cat.Get("users.get")
		for i := 0; i < 6; i++ {
			ep, err := list.SelectAvailable()
			require.NoError(t, err)
			assert.NotEqual(t, "B", ep.NodeID())
		}
	})

	t.Run("空列表", func(t *testing.T) {
		f := newFixture(t, &Config{RetainEmpty: true})
		f.add("A", "users", act("users.get"))
		f.cat.Remove("users.get", "A")
		list, _ := f.cat.Get("users.get")

		assert.NotPanics(t, func() {
			_, err := list.Select()
			assert.ErrorIs(t, err, ErrEmptyEndpointList)
			_, err = list.Select()
			assert.ErrorIs(t, err, ErrEmptyEndpointList)
		})
		_, err := list.SelectAvailable()
		assert.ErrorIs(t, err, ErrEmptyEndpointList)
		assert.Equal(t, CodeEmptyEndpointList, xerrors.GetCode(err))
		assert.False(t, list.HasAvailable())
		assert.False(t, list.HasLocal())
	})

	t.Run("CPU 策略读取节点采样", func(t *testing.T) {
		f := newFixture(t, nil)
		action := &topology.Action{
			Name:            "report.render",
			Strategy:        strategy.NameCPUUsage,
			StrategyOptions: map[string]any{"lowCpuUsage": 30},
		}
		for id, usage := range map[string]float64{"A": 80, "B": 20, "C": 50} {
			f.node(id).CPU().Record(usage)
			f.add(id, "report", action)
		}
		list, _ := f.cat.Get("report.render")
		assert.Equal(t, []string{"B", "B", "B"}, selectIDs(t, list, 3))

		f.node("B").CPU().Record(90)
		f.node("B").CPU().Record(90)
		f.node("B").CPU().Record(90)
		assert.Equal(t, []string{"C", "C"}, selectIDs(t, list, 2), "全部高于阈值时选最低者")
	})

	t.Run("CPU 策略跳过已从节点表移除的节点", func(t *testing.T) {
		f := newFixture(t, nil)
		action := &topology.Action{Name: "report.render", Strategy: strategy.NameCPUUsage}
		f.add("gone", "report", action)
		f.node("busy").CPU().Record(70)
		f.add("busy", "report", action)

		f.table.Remove("gone")
		list, _ := f.cat.Get("report.render")
		assert.Equal(t, []string{"busy", "busy", "busy"}, selectIDs(t, list, 3))
	})
}

func TestEndpointList_Accessors(t *testing.T) {
	f := newFixture(t, nil)
	list := f.add("local", "users", act("users.get"))
	list.Add(f.node("n1"), svc("n1", "users"), act("users.get"))

	assert.Equal(t, "users.get", list.Name())
	assert.True(t, list.HasLocal())
	assert.Equal(t, 2, list.Count())

	eps := list.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "local", eps[0].NodeID())
	assert.True(t, eps[0].Local())
	assert.False(t, eps[1].Local())
	assert.Equal(t, "users.get@n1", eps[1].String())

	eps[0] = nil
	assert.NotNil(t, list.Endpoints()[0], "返回的是拷贝")

	_, ok := list.EndpointByNodeID("missing")
	assert.False(t, ok)

	f.node("n1").CPU().Record(33)
	usage, ok := eps[1].CPUUsage(3)
	require.True(t, ok)
	assert.Equal(t, 33.0, usage)

	f.table.Remove("n1")
	_, ok = eps[1].CPUUsage(3)
	assert.False(t, ok)
	assert.False(t, eps[1].State())
}

func TestCatalog_Concurrent(t *testing.T) {
	f := newFixture(t, nil)
	nodes := make([]*topology.Node, 8)
	for i := range nodes {
		nodes[i] = f.node(fmt.Sprintf("n%d", i))
	}
	actions := []string{"users.get", "users.list", "posts.get"}

	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n *topology.Node) {
			defer wg.Done()
			s := svc(n.ID(), "users")
			for j := 0; j < 200; j++ {
				name := actions[(i+j)%len(actions)]
				_, err := f.cat.Add(n, s, act(name))
				assert.NoError(t, err)
				if list, ok := f.cat.Get(name); ok {
					_, _ = list.Select()
					_ = list.HasAvailable()
				}
				if j%3 == 0 {
					f.cat.Remove(name, n.ID())
				}
				_ = f.cat.List(ListOptions{WithEndpoints: true})
			}
		}(i, n)
	}
	wg.Wait()

	// 最终每个节点重新注册全部 action，计数必须精确
	for _, n := range nodes {
		for _, name := range actions {
			_, err := f.cat.Add(n, svc(n.ID(), "users"), act(name))
			require.NoError(t, err)
		}
	}
	for _, name := range actions {
		list, ok := f.cat.Get(name)
		require.True(t, ok)
		assert.Equal(t, len(nodes), list.Count(), name)
	}
	assert.Equal(t, len(actions), f.cat.Count())
}

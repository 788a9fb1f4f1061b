package strategy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	id        string
	available bool
	cpu       []float64
}

func (e *fakeEndpoint) NodeID() string  { return e.id }
func (e *fakeEndpoint) Available() bool { return e.available }

func (e *fakeEndpoint) CPUUsage(samples int) (float64, bool) {
	if len(e.cpu) == 0 {
		return 0, false
	}
	n := min(samples, len(e.cpu))
	var sum float64
	for _, v := range e.cpu[:n] {
		sum += v
	}
	return sum / float64(n), true
}

func endpoints(eps ...*fakeEndpoint) []Endpoint {
	out := make([]Endpoint, len(eps))
	for i, e := range eps {
		out[i] = e
	}
	return out
}

func ids(t *testing.T, s Strategy, eps []Endpoint, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		picked := s.Select(eps)
		require.NotNil(t, picked)
		out[i] = picked.NodeID()
	}
	return out
}

func TestRoundRobin(t *testing.T) {
	a := &fakeEndpoint{id: "A"}
	b := &fakeEndpoint{id: "B"}
	c := &fakeEndpoint{id: "C"}

	t.Run("依次轮询", func(t *testing.T) {
		rr := NewRoundRobin()
		assert.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, ids(t, rr, endpoints(a, b, c), 6))
	})

	t.Run("列表收缩后继续轮转", func(t *testing.T) {
		rr := NewRoundRobin()
		assert.Equal(t, []string{"A", "B"}, ids(t, rr, endpoints(a, b, c), 2))

		got := ids(t, rr, endpoints(a, c), 4)
		assert.ElementsMatch(t, []string{"A", "C", "A", "C"}, got)
		assert.NotEqual(t, got[0], got[1], "相邻两次不会选中同一个端点")
	})

	t.Run("空输入返回 nil", func(t *testing.T) {
		assert.Nil(t, NewRoundRobin().Select(nil))
	})

	t.Run("并发调用保持公平", func(t *testing.T) {
		rr := NewRoundRobin()
		eps := endpoints(a, b, c)

		var mu sync.Mutex
		counts := map[string]int{}
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 30; j++ {
					id := rr.Select(eps).NodeID()
					mu.Lock()
					counts[id]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, map[string]int{"A": 100, "B": 100, "C": 100}, counts)
	})

	t.Run("不修改输入", func(t *testing.T) {
		eps := endpoints(a, b, c)
		NewRoundRobin().Select(eps)
		assert.Equal(t, endpoints(a, b, c), eps)
	})
}

func TestRandom(t *testing.T) {
	eps := endpoints(&fakeEndpoint{id: "A"}, &fakeEndpoint{id: "B"})
	r := NewRandom()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[r.Select(eps).NodeID()] = true
	}
	assert.Len(t, seen, 2)
	assert.Nil(t, r.Select(nil))
}

func TestCPUUsage(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		s, err := NewCPUUsage(nil)
		require.NoError(t, err)
		assert.Equal(t, CPUUsageOptions{SampleCount: 3, LowCPUUsage: 10}, s.Opts())
	})

	t.Run("选中唯一低于阈值的端点", func(t *testing.T) {
		s, err := NewCPUUsage(Options{"lowCpuUsage": 30})
		require.NoError(t, err)

		eps := endpoints(
			&fakeEndpoint{id: "A", cpu: []float64{80}},
			&fakeEndpoint{id: "B", cpu: []float64{20}},
			&fakeEndpoint{id: "C", cpu: []float64{50}},
		)
		assert.Equal(t, []string{"B", "B", "B"}, ids(t, s, eps, 3))
	})

	t.Run("全部高于阈值时选平均值最低者", func(t *testing.T) {
		s, err := NewCPUUsage(Options{"lowCpuUsage": 30, "sampleCount": 2})
		require.NoError(t, err)

		eps := endpoints(
			&fakeEndpoint{id: "A", cpu: []float64{80, 80}},
			&fakeEndpoint{id: "B", cpu: []float64{90, 10, 10}},
			&fakeEndpoint{id: "C", cpu: []float64{45, 45}},
		)
		// B 最近两个样本平均为 50，高于 C 的 45
		assert.Equal(t, []string{"C", "C", "C"}, ids(t, s, eps, 3))
	})

	t.Run("没有 CPU 数据的新节点优先", func(t *testing.T) {
		s, err := NewCPUUsage(nil)
		require.NoError(t, err)

		eps := endpoints(
			&fakeEndpoint{id: "old", cpu: []float64{70}},
			&fakeEndpoint{id: "new", available: true},
		)
		assert.Equal(t, []string{"new", "new"}, ids(t, s, eps, 2))
	})

	t.Run("已离开的节点不会因为没有数据被优先选中", func(t *testing.T) {
		s, err := NewCPUUsage(nil)
		require.NoError(t, err)

		eps := endpoints(
			&fakeEndpoint{id: "gone"},
			&fakeEndpoint{id: "busy", available: true, cpu: []float64{70}},
		)
		assert.Equal(t, []string{"busy", "busy", "busy"}, ids(t, s, eps, 3))
	})

	t.Run("全部端点都没有数据且不可用时按起点轮转", func(t *testing.T) {
		s, err := NewCPUUsage(nil)
		require.NoError(t, err)

		eps := endpoints(&fakeEndpoint{id: "A"}, &fakeEndpoint{id: "B"})
		assert.Equal(t, []string{"A", "B", "A"}, ids(t, s, eps, 3))
	})

	t.Run("持平时轮转", func(t *testing.T) {
		s, err := NewCPUUsage(nil)
		require.NoError(t, err)

		eps := endpoints(
			&fakeEndpoint{id: "A", cpu: []float64{60}},
			&fakeEndpoint{id: "B", cpu: []float64{60}},
			&fakeEndpoint{id: "C", cpu: []float64{60}},
		)
		assert.Equal(t, []string{"A", "B", "C", "A"}, ids(t, s, eps, 4))
	})

	t.Run("无效配置", func(t *testing.T) {
		for _, opts := range []Options{
			{"sampleCount": 0},
			{"sampleCount": -2},
			{"lowCpuUsage": 120},
			{"sampleCount": "many"},
		} {
			_, err := NewCPUUsage(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions, "%v", opts)
		}
	})

	t.Run("弱类型输入", func(t *testing.T) {
		s, err := NewCPUUsage(Options{"sampleCount": "6", "lowCpuUsage": "15"})
		require.NoError(t, err)
		assert.Equal(t, CPUUsageOptions{SampleCount: 6, LowCPUUsage: 15}, s.Opts())
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{NameCPUUsage, NameRandom, NameRoundRobin}, reg.Names())

	t.Run("名称大小写不敏感", func(t *testing.T) {
		s, err := reg.New("roundrobin", nil)
		require.NoError(t, err)
		assert.IsType(t, &RoundRobin{}, s)

		s, err = reg.New("CPUUSAGE", Options{"sampleCount": 5})
		require.NoError(t, err)
		require.IsType(t, &CPUUsage{}, s)
		assert.Equal(t, 5, s.(*CPUUsage).Opts().SampleCount)
	})

	t.Run("每次创建独立实例", func(t *testing.T) {
		a, _ := reg.New(NameRoundRobin, nil)
		b, _ := reg.New(NameRoundRobin, nil)
		assert.NotSame(t, a, b)
	})

	t.Run("未知策略", func(t *testing.T) {
		_, err := reg.New("Sharded", nil)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
		assert.Contains(t, err.Error(), "Sharded")
	})

	t.Run("配置错误透传", func(t *testing.T) {
		_, err := reg.New(NameCPUUsage, Options{"sampleCount": -1})
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("注册自定义策略", func(t *testing.T) {
		require.NoError(t, reg.Register("First", func(Options) (Strategy, error) { return firstStrategy{}, nil }))
		s, err := reg.New("first", nil)
		require.NoError(t, err)
		eps := endpoints(&fakeEndpoint{id: "A"}, &fakeEndpoint{id: "B"})
		assert.Equal(t, "A", s.Select(eps).NodeID())

		assert.Error(t, reg.Register("", nil))
		assert.Error(t, reg.Register("Nil", nil))
	})

	t.Run("返回 nil 的 Factory", func(t *testing.T) {
		require.NoError(t, reg.Register("Broken", func(Options) (Strategy, error) { return nil, nil }))
		_, err := reg.New("Broken", nil)
		assert.Error(t, err)
	})
}

type firstStrategy struct{}

func (firstStrategy) Select(eps []Endpoint) Endpoint {
	if len(eps) == 0 {
		return nil
	}
	return eps[0]
}

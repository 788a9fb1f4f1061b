package strategy

import (
	"slices"
	"strings"
	"sync"

	"github.com/ceyewan/meshroute/xerrors"
)

// 内置策略名称
const (
	NameRoundRobin = "RoundRobin"
	NameRandom     = "Random"
	NameCPUUsage   = "CpuUsage"
)

type entry struct {
	name    string
	factory Factory
}

// Registry 策略名称到 Factory 的映射，名称大小写不敏感
type Registry struct {
	mu        sync.RWMutex
	factories map[string]entry
}

// NewRegistry 创建包含内置策略的注册表
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]entry)}
	_ = r.Register(NameRoundRobin, func(Options) (Strategy, error) { return NewRoundRobin(), nil })
	_ = r.Register(NameRandom, func(Options) (Strategy, error) { return NewRandom(), nil })
	_ = r.Register(NameCPUUsage, func(opts Options) (Strategy, error) { return NewCPUUsage(opts) })
	return r
}

// Register 注册或覆盖一个策略
func (r *Registry) Register(name string, factory Factory) error {
	if strings.TrimSpace(name) == "" {
		return xerrors.Mark(xerrors.New("strategy name is empty"), xerrors.ErrInvalidInput)
	}
	if factory == nil {
		return xerrors.Mark(xerrors.Errorf("strategy %q has nil factory", name), xerrors.ErrInvalidInput)
	}

	r.mu.Lock()
	r.factories[strings.ToLower(name)] = entry{name: name, factory: factory}
	r.mu.Unlock()
	return nil
}

// Lookup 查找 Factory
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	e, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, xerrors.Mark(xerrors.Errorf("%q", name), ErrUnknownStrategy)
	}
	return e.factory, nil
}

// New 按名称创建策略实例
func (r *Registry) New(name string, opts Options) (Strategy, error) {
	factory, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	s, err := factory(opts)
	if err != nil {
		return nil, xerrors.Wrapf(err, "construct strategy %q", name)
	}
	if s == nil {
		return nil, xerrors.Errorf("strategy %q factory returned nil", name)
	}
	return s, nil
}

// Names 已注册策略的名称（注册时的写法），按字母序
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for _, e := range r.factories {
		names = append(names, e.name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

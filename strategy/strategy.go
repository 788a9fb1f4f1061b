// Package strategy 定义端点选择策略及其注册表。
//
// 每个 EndpointList 持有一个独立的 Strategy 实例，策略可以保存内部状态（如轮询游标），
// 但不得修改传入的切片，也不得在多个列表之间共享。
//
// 内置策略：
//   - RoundRobin：原子游标轮询
//   - Random：均匀随机
//   - CpuUsage：优先选择 CPU 使用率低于阈值的端点，否则选平均值最低者
//
// 使用方式：
//
//	reg := strategy.NewRegistry()
//	s, err := reg.New("CpuUsage", strategy.Options{"sampleCount": 5, "lowCpuUsage": 20})
//	picked := s.Select(endpoints)
package strategy

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/ceyewan/meshroute/xerrors"
)

// Endpoint 策略可见的端点视图
type Endpoint interface {
	// NodeID 端点所在节点
	NodeID() string
	// Available 节点可达且未降级
	Available() bool
	// CPUUsage 节点最近 samples 个 CPU 样本的平均值，没有样本时返回 false
	CPUUsage(samples int) (float64, bool)
}

// Strategy 从非空端点序列中选出一个
//
// 输入为空时返回 nil。
type Strategy interface {
	Select(endpoints []Endpoint) Endpoint
}

// Options 策略的原始配置，通常来自 action 描述中的 strategyOptions
type Options map[string]any

// Decode 将原始配置解码到结构体（mapstructure 标签），允许 "5" 这类弱类型输入
func (o Options) Decode(out any) error {
	if len(o) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return xerrors.Wrap(err, "create options decoder")
	}
	if err := dec.Decode(map[string]any(o)); err != nil {
		return xerrors.Mark(xerrors.Wrap(err, "decode strategy options"), ErrInvalidOptions)
	}
	return nil
}

// Factory 根据配置创建策略实例
type Factory func(opts Options) (Strategy, error)

// 哨兵错误
var (
	// ErrUnknownStrategy 注册表中没有该名称
	ErrUnknownStrategy = xerrors.New("unknown strategy")

	// ErrInvalidOptions 策略配置无效
	ErrInvalidOptions = xerrors.New("invalid strategy options")
)

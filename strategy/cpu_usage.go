package strategy

import (
	"math"
	"sync/atomic"

	"github.com/ceyewan/meshroute/xerrors"
)

// CPUUsageOptions CpuUsage 策略配置
type CPUUsageOptions struct {
	// SampleCount 参与平均的最近样本数
	SampleCount int `mapstructure:"sampleCount" json:"sampleCount"`
	// LowCPUUsage 低于该百分比的端点直接被选中
	LowCPUUsage float64 `mapstructure:"lowCpuUsage" json:"lowCpuUsage"`
}

// DefaultCPUUsageOptions 默认配置
func DefaultCPUUsageOptions() CPUUsageOptions {
	return CPUUsageOptions{SampleCount: 3, LowCPUUsage: 10}
}

func (o CPUUsageOptions) validate() error {
	if o.SampleCount < 1 {
		return xerrors.Mark(xerrors.Errorf("sampleCount must be >= 1, got %d", o.SampleCount), ErrInvalidOptions)
	}
	if o.LowCPUUsage < 0 || o.LowCPUUsage > 100 {
		return xerrors.Mark(xerrors.Errorf("lowCpuUsage must be within [0, 100], got %v", o.LowCPUUsage), ErrInvalidOptions)
	}
	return nil
}

// CPUUsage 按节点 CPU 使用率选择
//
// 从轮转的起点开始扫描：可用但没有 CPU 数据的端点（新加入的节点）或使用率低于 LowCPUUsage 的端点立即返回；
// 否则返回平均值最低者，持平时取最先扫描到的，因此持平的端点随起点轮转被依次选中。
// 不可用且没有数据的端点（节点已离开或失联）不参与比较，全部端点都如此时返回起点处的端点。
type CPUUsage struct {
	opts   CPUUsageOptions
	cursor atomic.Uint64
}

// NewCPUUsage 从原始配置创建，缺省字段使用默认值
func NewCPUUsage(raw Options) (*CPUUsage, error) {
	opts := DefaultCPUUsageOptions()
	if err := raw.Decode(&opts); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &CPUUsage{opts: opts}, nil
}

// Opts 生效的配置
func (s *CPUUsage) Opts() CPUUsageOptions {
	return s.opts
}

func (s *CPUUsage) Select(endpoints []Endpoint) Endpoint {
	n := uint64(len(endpoints))
	if n == 0 {
		return nil
	}

	start := s.cursor.Add(1) - 1
	var best Endpoint
	bestUsage := math.Inf(1)
	for i := uint64(0); i < n; i++ {
		ep := endpoints[(start+i)%n]
		usage, ok := ep.CPUUsage(s.opts.SampleCount)
		if !ok {
			if ep.Available() {
				return ep
			}
			continue
		}
		if usage < s.opts.LowCPUUsage {
			return ep
		}
		if usage < bestUsage {
			best, bestUsage = ep, usage
		}
	}
	if best == nil {
		return endpoints[start%n]
	}
	return best
}

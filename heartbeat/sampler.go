package heartbeat

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/ceyewan/meshroute/xerrors"
)

// Sampler 返回当前 CPU 使用率，取值 [0, 100]
type Sampler interface {
	Sample(ctx context.Context) (float64, error)
}

// SamplerFunc 函数适配器
type SamplerFunc func(ctx context.Context) (float64, error)

// Sample 实现 Sampler
func (f SamplerFunc) Sample(ctx context.Context) (float64, error) { return f(ctx) }

// CPUSampler 基于 gopsutil 的整机 CPU 使用率采样
//
// 每次采样返回与上一次调用之间的使用率，不阻塞等待采样窗口。
// 上一次读数由 gopsutil 在进程内共享，同一进程中应只有一个周期性调用方。
type CPUSampler struct{}

// NewCPUSampler 创建采样器
func NewCPUSampler() *CPUSampler {
	return &CPUSampler{}
}

// Sample 实现 Sampler
func (s *CPUSampler) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, xerrors.Mark(xerrors.Wrap(err, "read cpu percent"), ErrSampleFailed)
	}
	if len(percents) == 0 {
		return 0, xerrors.Mark(xerrors.New("cpu percent returned no value"), ErrSampleFailed)
	}
	return min(max(percents[0], 0), 100), nil
}

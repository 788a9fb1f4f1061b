// Package testkit 提供 meshroute 各组件测试共用的依赖与夹具。
//
// 依赖外部服务（etcd、NATS）的夹具基于 testcontainers 启动容器，
// Docker 不可用时调用方测试会被跳过，容器生命周期由 t.Cleanup 管理。
package testkit

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包，ctx 在测试结束时取消
func NewKit(t *testing.T) *Kit {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	meter := NewMeter()
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 返回一个用于测试的 logger，开发环境格式
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig(), clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// Buffer 并发安全的日志缓冲区
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewBufferLogger 返回输出 JSON 到内存的 logger，用于断言日志内容
func NewBufferLogger(t *testing.T, level string) (clog.Logger, *Buffer) {
	t.Helper()
	buf := &Buffer{}
	logger, err := clog.New(&clog.Config{Level: level, Format: "json"}, clog.WithWriter(buf))
	if err != nil {
		t.Fatalf("failed to create buffer logger: %v", err)
	}
	return logger, buf
}

// NewMeter 返回一个用于测试的 meter，指标可以通过 Handler 抓取
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 key 前缀、subject 后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// Eventually 轮询 cond 直到返回 true 或超时
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

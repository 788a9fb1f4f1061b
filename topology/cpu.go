package topology

import "sync"

// DefaultCPUCapacity CPU 采样窗口的默认容量
const DefaultCPUCapacity = 10

// CPUWindow 固定容量的 CPU 使用率环形缓冲区，新样本覆盖最旧样本
type CPUWindow struct {
	mu      sync.RWMutex
	samples []float64
	next    int
	size    int
}

// NewCPUWindow 创建窗口，capacity <= 0 时使用默认容量
func NewCPUWindow(capacity int) *CPUWindow {
	if capacity <= 0 {
		capacity = DefaultCPUCapacity
	}
	return &CPUWindow{samples: make([]float64, capacity)}
}

// Record 写入一个样本（百分比）
func (w *CPUWindow) Record(usage float64) {
	w.mu.Lock()
	w.samples[w.next] = usage
	w.next = (w.next + 1) % len(w.samples)
	if w.size < len(w.samples) {
		w.size++
	}
	w.mu.Unlock()
}

// Len 当前样本数
func (w *CPUWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Cap 窗口容量
func (w *CPUWindow) Cap() int {
	return len(w.samples)
}

// Samples 返回最近 n 个样本的拷贝，最新的在前；n <= 0 表示全部
func (w *CPUWindow) Samples(n int) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if n <= 0 || n > w.size {
		n = w.size
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = w.samples[w.index(i)]
	}
	return out
}

// Latest 返回最新样本
func (w *CPUWindow) Latest() (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.size == 0 {
		return 0, false
	}
	return w.samples[w.index(0)], true
}

// Average 最近 n 个样本的平均值，窗口为空时返回 false
func (w *CPUWindow) Average(n int) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.size == 0 {
		return 0, false
	}
	if n <= 0 || n > w.size {
		n = w.size
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.samples[w.index(i)]
	}
	return sum / float64(n), true
}

// index 第 i 新的样本在底层数组中的下标，调用方持有读锁
func (w *CPUWindow) index(i int) int {
	c := len(w.samples)
	return ((w.next-1-i)%c + c) % c
}

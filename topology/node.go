// Package topology 持有网格中节点、服务与 action 的描述数据。
//
// 拓扑层是这些数据的唯一所有者：discovery 负责写入节点和服务，heartbeat 负责写入 CPU 采样，
// catalog 只通过 NodeLookup 按节点 ID 读取，不持有 *Node 的长期引用。
package topology

import (
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

// Node 网格中的一个进程
//
// 可达性与降级标记可并发修改，读取无锁。
type Node struct {
	id        string
	hostname  string
	local     bool
	reachable atomic.Bool
	degraded  atomic.Bool
	cpu       *CPUWindow
}

// NodeOption 节点选项
type NodeOption func(*Node)

// AsLocal 标记为本地节点
func AsLocal() NodeOption {
	return func(n *Node) {
		n.local = true
	}
}

// WithHostname 设置主机名
func WithHostname(hostname string) NodeOption {
	return func(n *Node) {
		n.hostname = hostname
	}
}

// WithCPUCapacity 设置 CPU 采样窗口容量
func WithCPUCapacity(capacity int) NodeOption {
	return func(n *Node) {
		n.cpu = NewCPUWindow(capacity)
	}
}

// NewNode 创建节点，初始状态为可达、未降级
func NewNode(id string, opts ...NodeOption) *Node {
	n := &Node{id: id}
	for _, opt := range opts {
		opt(n)
	}
	if n.cpu == nil {
		n.cpu = NewCPUWindow(DefaultCPUCapacity)
	}
	n.reachable.Store(true)
	return n
}

func (n *Node) ID() string { return n.id }

func (n *Node) Hostname() string { return n.hostname }

func (n *Node) IsLocal() bool { return n.local }

// Reachable 节点当前是否在线
func (n *Node) Reachable() bool { return n.reachable.Load() }

// SetReachable 更新可达性，返回之前的值
func (n *Node) SetReachable(v bool) bool { return n.reachable.Swap(v) }

// Degraded 节点是否被显式降级
func (n *Node) Degraded() bool { return n.degraded.Load() }

// SetDegraded 更新降级标记，返回之前的值
func (n *Node) SetDegraded(v bool) bool { return n.degraded.Swap(v) }

// Available 可达且未降级
func (n *Node) Available() bool {
	return n.Reachable() && !n.Degraded()
}

// CPU 返回节点的 CPU 采样窗口
func (n *Node) CPU() *CPUWindow { return n.cpu }

// GenerateNodeID 生成 "<hostname>-<8 位随机十六进制>" 形式的节点 ID
func GenerateNodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "node"
	}
	return hostname + "-" + uuid.NewString()[:8]
}

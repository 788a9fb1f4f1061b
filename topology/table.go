package topology

import (
	"slices"
	"strings"
	"sync"
)

// NodeLookup 按 ID 查找节点
//
// Endpoint 只保存节点 ID 与 NodeLookup，节点从表中移除后 Endpoint 会立即变为不可用。
type NodeLookup interface {
	Node(id string) (*Node, bool)
}

// Table 并发安全的节点表，始终包含本地节点
type Table struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	local *Node
}

// NewTable 创建节点表，local 为 nil 时会生成一个本地节点
func NewTable(local *Node) *Table {
	if local == nil {
		local = NewNode(GenerateNodeID(), AsLocal())
	}
	return &Table{
		nodes: map[string]*Node{local.ID(): local},
		local: local,
	}
}

// Node 实现 NodeLookup
func (t *Table) Node(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Get 同 Node
func (t *Table) Get(id string) (*Node, bool) {
	return t.Node(id)
}

// Add 加入节点，已存在同 ID 节点时返回已有节点并标记为可达
//
// 复用已有节点可以保留它的 CPU 采样窗口。
func (t *Table) Add(node *Node) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.nodes[node.ID()]; ok {
		existing.SetReachable(true)
		return existing
	}
	t.nodes[node.ID()] = node
	return node
}

// Remove 移除远程节点，本地节点不可移除
func (t *Table) Remove(id string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == t.local.ID() {
		return nil, false
	}
	n, ok := t.nodes[id]
	if ok {
		delete(t.nodes, id)
	}
	return n, ok
}

// Local 本地节点
func (t *Table) Local() *Node { return t.local }

// LocalID 本地节点 ID
func (t *Table) LocalID() string { return t.local.ID() }

// Len 节点数
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// List 按 ID 排序返回所有节点
func (t *Table) List() []*Node {
	t.mu.RLock()
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Node) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

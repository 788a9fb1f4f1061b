package strategy

import "sync/atomic"

// RoundRobin 轮询
//
// 游标在每次调用时原子递增，对当前长度取模，列表收缩后自然回绕。
type RoundRobin struct {
	cursor atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (s *RoundRobin) Select(endpoints []Endpoint) Endpoint {
	n := uint64(len(endpoints))
	if n == 0 {
		return nil
	}
	i := s.cursor.Add(1) - 1
	return endpoints[i%n]
}

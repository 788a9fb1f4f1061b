package strategy

import "math/rand/v2"

// Random 均匀随机
type Random struct{}

func NewRandom() *Random {
	return &Random{}
}

func (s *Random) Select(endpoints []Endpoint) Endpoint {
	if len(endpoints) == 0 {
		return nil
	}
	return endpoints[rand.IntN(len(endpoints))]
}

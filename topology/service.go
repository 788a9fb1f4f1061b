package topology

import (
	"strconv"
)

// Service 某个节点上的一个服务实例
//
// 同名不同版本的服务可以同时存在，FullName 区分它们。
type Service struct {
	Name     string         `json:"name" msgpack:"name"`
	Version  string         `json:"version,omitempty" msgpack:"version,omitempty"`
	NodeID   string         `json:"nodeID" msgpack:"nodeID"`
	Settings map[string]any `json:"settings,omitempty" msgpack:"settings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// FullName 带版本前缀的服务名：数字版本为 "v2.users"，其它版本为 "staging.users"
func (s *Service) FullName() string {
	if s.Version == "" {
		return s.Name
	}
	if _, err := strconv.ParseFloat(s.Version, 64); err == nil {
		return "v" + s.Version + "." + s.Name
	}
	return s.Version + "." + s.Name
}

// Key 服务实例的唯一键 "<nodeID>/<fullName>"
func (s *Service) Key() string {
	return s.NodeID + "/" + s.FullName()
}

// Same 同一实例或键相同
func (s *Service) Same(other *Service) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s == other || s.Key() == other.Key()
}

// Action 服务暴露的一个可调用操作
//
// 除 Name 之外的字段都是路由提示，catalog 原样保存并在列表视图中输出。
type Action struct {
	Name            string         `json:"name" msgpack:"name"`
	Strategy        string         `json:"strategy,omitempty" msgpack:"strategy,omitempty"`
	StrategyOptions map[string]any `json:"strategyOptions,omitempty" msgpack:"strategyOptions,omitempty"`
	Cache           bool           `json:"cache,omitempty" msgpack:"cache,omitempty"`
	Params          map[string]any `json:"params,omitempty" msgpack:"params,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

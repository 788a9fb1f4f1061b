package discovery

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// NodeInfo 节点在 etcd 中发布的描述，msgpack 编码
type NodeInfo struct {
	ID       string        `msgpack:"id" json:"id"`
	Hostname string        `msgpack:"hostname,omitempty" json:"hostname,omitempty"`
	Services []ServiceInfo `msgpack:"services" json:"services"`
	// Seq 每次 Update 递增，仅用于排查
	Seq uint64 `msgpack:"seq" json:"seq"`
}

// ServiceInfo 节点上的一个服务及其 action
type ServiceInfo struct {
	Name     string            `msgpack:"name" json:"name"`
	Version  string            `msgpack:"version,omitempty" json:"version,omitempty"`
	Settings map[string]any    `msgpack:"settings,omitempty" json:"settings,omitempty"`
	Metadata map[string]any    `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
	Actions  []topology.Action `msgpack:"actions" json:"actions"`
}

func (n *NodeInfo) validate() error {
	if n == nil || n.ID == "" {
		return xerrors.Mark(xerrors.New("node id is empty"), ErrInvalidNodeInfo)
	}
	for _, s := range n.Services {
		if s.Name == "" {
			return xerrors.Mark(xerrors.New("service name is empty"), ErrInvalidNodeInfo)
		}
		for _, a := range s.Actions {
			if a.Name == "" {
				return xerrors.Mark(xerrors.Errorf("service %q has an action without name", s.Name), ErrInvalidNodeInfo)
			}
		}
	}
	return nil
}

// EncodeNodeInfo 编码节点描述
func EncodeNodeInfo(info *NodeInfo) ([]byte, error) {
	data, err := msgpack.Marshal(info)
	if err != nil {
		return nil, xerrors.Wrap(err, "encode node info")
	}
	return data, nil
}

// DecodeNodeInfo 解码节点描述
func DecodeNodeInfo(data []byte) (*NodeInfo, error) {
	var info NodeInfo
	if err := msgpack.Unmarshal(data, &info); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "decode node info"), ErrInvalidNodeInfo)
	}
	if err := info.validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

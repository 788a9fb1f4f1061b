package heartbeat

import (
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/meshroute/xerrors"
)

// Beat 一次 CPU 心跳
type Beat struct {
	NodeID string    `msgpack:"nodeID" json:"nodeID"`
	CPU    float64   `msgpack:"cpu" json:"cpu"`
	At     time.Time `msgpack:"at" json:"at"`
}

func (b *Beat) validate() error {
	if b.NodeID == "" {
		return xerrors.Mark(xerrors.New("node id is empty"), ErrInvalidBeat)
	}
	if math.IsNaN(b.CPU) || b.CPU < 0 || b.CPU > 100 {
		return xerrors.Mark(xerrors.Errorf("cpu usage out of range: %v", b.CPU), ErrInvalidBeat)
	}
	return nil
}

// EncodeBeat 编码心跳
func EncodeBeat(b *Beat) ([]byte, error) {
	data, err := msgpack.Marshal(b)
	if err != nil {
		return nil, xerrors.Wrap(err, "encode beat")
	}
	return data, nil
}

// DecodeBeat 解码并校验心跳
func DecodeBeat(data []byte) (*Beat, error) {
	var b Beat
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "decode beat"), ErrInvalidBeat)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

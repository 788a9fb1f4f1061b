package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/connector"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// Subscriber 接收心跳并写入发送方节点的 CPU 窗口
type Subscriber struct {
	conn     *nats.Conn
	nodes    topology.NodeLookup
	localID  string
	cfg      *Config
	logger   clog.Logger
	received metrics.Counter

	mu      sync.Mutex
	sub     *nats.Subscription
	started atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewSubscriber 创建 Subscriber；table 同时提供节点查找与本地节点 ID
func NewSubscriber(conn connector.NATSConnector, table *topology.Table, cfg *Config, opts ...Option) (*Subscriber, error) {
	if conn == nil {
		return nil, xerrors.Mark(xerrors.New("nats connector is required"), xerrors.ErrInvalidInput)
	}
	nc := conn.GetClient()
	if nc == nil {
		return nil, xerrors.Mark(xerrors.New("nats connection is nil, call Connect first"), connector.ErrNotConnected)
	}
	return newSubscriber(nc, table, cfg, opts...)
}

func newSubscriber(nc *nats.Conn, table *topology.Table, cfg *Config, opts ...Option) (*Subscriber, error) {
	if table == nil {
		return nil, xerrors.Mark(xerrors.New("node table is required"), xerrors.ErrInvalidInput)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts)
	received, err := opt.meter.Counter("heartbeat_received_total", "Heartbeats received from peers")
	if err != nil {
		return nil, xerrors.Wrap(err, "create received counter")
	}

	return &Subscriber{
		conn:     nc,
		nodes:    table,
		localID:  table.LocalID(),
		cfg:      cfg,
		logger:   opt.logger,
		received: received,
		done:     make(chan struct{}),
	}, nil
}

// Start 订阅心跳主题；ctx 取消或 Close 后退订
func (s *Subscriber) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	sub, err := s.conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		s.handle(ctx, msg.Data)
	})
	if err != nil {
		s.started.Store(false)
		return xerrors.Wrapf(err, "subscribe to %s", s.cfg.Subject)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	s.logger.Info("heartbeat subscriber started", clog.String("subject", s.cfg.Subject))
	return nil
}

// handle 处理一条心跳；本地节点的心跳已由 Publisher 记录，未知节点忽略
func (s *Subscriber) handle(ctx context.Context, data []byte) {
	beat, err := DecodeBeat(data)
	if err != nil {
		s.received.Inc(ctx, metrics.L("result", "invalid"))
		s.logger.Warn("drop invalid heartbeat", clog.Error(err))
		return
	}
	if beat.NodeID == s.localID {
		return
	}

	node, ok := s.nodes.Node(beat.NodeID)
	if !ok {
		s.received.Inc(ctx, metrics.L("result", "unknown"))
		s.logger.Debug("heartbeat from unknown node", clog.String("node_id", beat.NodeID))
		return
	}
	node.CPU().Record(beat.CPU)
	s.received.Inc(ctx, metrics.L("result", "ok"))
}

// Close 退订，幂等
func (s *Subscriber) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			err = sub.Unsubscribe()
			if xerrors.Is(err, nats.ErrConnectionClosed) {
				err = nil
			}
		}
		s.logger.Info("heartbeat subscriber stopped")
	})
	return err
}

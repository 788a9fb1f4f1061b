package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/xerrors"
)

type natsConnector struct {
	cfg     *NATSConfig
	conn    *nats.Conn
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool
	mu      sync.RWMutex
}

// NewNATS 创建 NATS 连接器，不会立即建立连接
func NewNATS(cfg *NATSConfig, opts ...Option) (NATSConnector, error) {
	if cfg == nil {
		return nil, xerrors.Mark(xerrors.New("nats config is nil"), ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid nats config")
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	m, err := newConnMetrics(opt.meter, "nats", cfg.Name)
	if err != nil {
		return nil, err
	}

	return &natsConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "nats"), clog.String("name", cfg.Name)),
		metrics: m,
	}, nil
}

// MustNewNATS 创建 NATS 连接器，失败时 panic
func MustNewNATS(cfg *NATSConfig, opts ...Option) NATSConnector {
	return xerrors.Must(NewNATS(cfg, opts...))
}

func (c *natsConnector) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.Timeout(c.cfg.Timeout),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.PingInterval(c.cfg.PingInterval),
		nats.MaxPingsOutstanding(c.cfg.MaxPingsOut),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.healthy.Store(false)
			c.logger.Warn("nats disconnected", clog.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.healthy.Store(true)
			c.logger.Info("nats reconnected", clog.String("url", nc.ConnectedUrlRedacted()))
		}),
	}
	if c.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.Token != "" {
		opts = append(opts, nats.Token(c.cfg.Token))
	}
	return opts
}

// Connect 建立连接
func (c *natsConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	c.metrics.attempt(ctx)
	c.logger.Info("attempting to connect to nats", clog.String("url", c.cfg.URL))

	conn, err := nats.Connect(c.cfg.URL, c.natsOptions()...)
	if err != nil {
		c.metrics.failed(ctx)
		c.logger.Error("failed to connect to nats", clog.Error(err), clog.String("url", c.cfg.URL))
		return xerrors.Mark(xerrors.Wrapf(err, "nats connector[%s]", c.cfg.Name), ErrConnection)
	}

	c.conn = conn
	c.healthy.Store(true)
	c.metrics.setActive(ctx, true)
	c.logger.Info("successfully connected to nats", clog.String("url", c.cfg.URL))
	return nil
}

// Close 关闭连接
func (c *natsConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.conn == nil {
		return nil
	}

	c.logger.Info("closing nats connection", clog.String("url", c.cfg.URL))
	c.metrics.setActive(context.Background(), false)
	c.conn.Close()
	c.conn = nil
	return nil
}

// HealthCheck 检查连接状态并往返一次服务器
func (c *natsConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if status := conn.Status(); status != nats.CONNECTED {
		c.healthy.Store(false)
		return xerrors.Mark(xerrors.Wrapf(xerrors.New(status.String()), "nats connector[%s] status", c.cfg.Name), ErrHealthCheck)
	}

	flushCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := conn.FlushWithContext(flushCtx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("nats health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "nats connector[%s]", c.cfg.Name), ErrHealthCheck)
	}

	c.healthy.Store(true)
	return nil
}

func (c *natsConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *natsConnector) Name() string {
	return c.cfg.Name
}

func (c *natsConnector) GetClient() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

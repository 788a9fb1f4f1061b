package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/xerrors"
)

// healthKey 健康检查读取的 key，不存在也视为成功
const healthKey = "meshroute/health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool
	mu      sync.RWMutex
}

// NewEtcd 创建 etcd 连接器，不会立即建立连接
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Mark(xerrors.New("etcd config is nil"), ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid etcd config")
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	m, err := newConnMetrics(opt.meter, "etcd", cfg.Name)
	if err != nil {
		return nil, err
	}

	return &etcdConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		metrics: m,
	}, nil
}

// MustNewEtcd 创建 etcd 连接器，失败时 panic
func MustNewEtcd(cfg *EtcdConfig, opts ...Option) EtcdConnector {
	return xerrors.Must(NewEtcd(cfg, opts...))
}

// Connect 建立连接并读取一次 key 验证可用性
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.healthy.Load() {
		return nil
	}

	c.metrics.attempt(ctx)
	c.logger.Info("attempting to connect to etcd", clog.Any("endpoints", c.cfg.Endpoints))

	if c.client == nil {
		client, err := clientv3.New(clientv3.Config{
			Endpoints:            c.cfg.Endpoints,
			DialTimeout:          c.cfg.DialTimeout,
			DialKeepAliveTime:    c.cfg.KeepAliveTime,
			DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
			Username:             c.cfg.Username,
			Password:             c.cfg.Password,
		})
		if err != nil {
			c.metrics.failed(ctx)
			c.logger.Error("failed to create etcd client", clog.Error(err))
			return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name), ErrConnection)
		}
		c.client = client
	}

	if err := c.ping(ctx); err != nil {
		c.metrics.failed(ctx)
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name), ErrConnection)
	}

	c.healthy.Store(true)
	c.metrics.setActive(ctx, true)
	c.logger.Info("successfully connected to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := c.client.Get(pingCtx, healthKey)
	return err
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}

	c.logger.Info("closing etcd connection")
	c.metrics.setActive(context.Background(), false)

	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Info("etcd connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if err := c.ping(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name), ErrHealthCheck)
	}

	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

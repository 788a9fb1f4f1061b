// Package heartbeat 通过 NATS 在节点之间交换 CPU 使用率。
//
// Publisher 定期采样本机 CPU，写入本地节点的采样窗口并广播 Beat；
// Subscriber 接收其他节点的 Beat，写入对应节点的采样窗口，供 CpuUsage 策略读取。
// 心跳只携带负载数据，不参与节点存活判断，节点上下线由 discovery 负责。
//
// 基本使用：
//
//	pub, _ := heartbeat.NewPublisher(natsConn, table.Local(), heartbeat.NewCPUSampler(), cfg,
//		heartbeat.WithLogger(logger))
//	go pub.Run(ctx)
//
//	sub, _ := heartbeat.NewSubscriber(natsConn, table, cfg, heartbeat.WithLogger(logger))
//	_ = sub.Start(ctx)
//	defer sub.Close()
package heartbeat

import (
	"context"
	"time"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/connector"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

type publishFunc func(subject string, data []byte) error

// Publisher 周期性采样并发布本地节点的 CPU 使用率
type Publisher struct {
	publish publishFunc
	node    *topology.Node
	sampler Sampler
	cfg     *Config
	logger  clog.Logger
	sent    metrics.Counter
	now     func() time.Time
}

// NewPublisher 创建 Publisher，借用 NATS 连接器的连接
func NewPublisher(conn connector.NATSConnector, local *topology.Node, sampler Sampler, cfg *Config, opts ...Option) (*Publisher, error) {
	if conn == nil {
		return nil, xerrors.Mark(xerrors.New("nats connector is required"), xerrors.ErrInvalidInput)
	}
	nc := conn.GetClient()
	if nc == nil {
		return nil, xerrors.Mark(xerrors.New("nats connection is nil, call Connect first"), connector.ErrNotConnected)
	}
	return newPublisher(nc.Publish, local, sampler, cfg, opts...)
}

func newPublisher(publish publishFunc, local *topology.Node, sampler Sampler, cfg *Config, opts ...Option) (*Publisher, error) {
	if local == nil {
		return nil, xerrors.Mark(xerrors.New("local node is required"), xerrors.ErrInvalidInput)
	}
	if sampler == nil {
		sampler = NewCPUSampler()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts)
	sent, err := opt.meter.Counter("heartbeat_published_total", "Heartbeats published by this node")
	if err != nil {
		return nil, xerrors.Wrap(err, "create published counter")
	}

	return &Publisher{
		publish: publish,
		node:    local,
		sampler: sampler,
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("node_id", local.ID())),
		sent:    sent,
		now:     time.Now,
	}, nil
}

// Run 每个 Interval 采样并发布一次，阻塞直到 ctx 取消
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("heartbeat publisher started",
		clog.String("subject", p.cfg.Subject),
		clog.Duration("interval", p.cfg.Interval))

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("heartbeat publisher stopped")
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Publisher) tick(ctx context.Context) {
	if err := p.Beat(ctx); err != nil {
		p.logger.Warn("heartbeat failed", clog.Error(err))
	}
}

// Beat 立即采样一次：写入本地窗口并发布
func (p *Publisher) Beat(ctx context.Context) error {
	usage, err := p.sampler.Sample(ctx)
	if err != nil {
		return xerrors.Mark(err, ErrSampleFailed)
	}
	p.node.CPU().Record(usage)

	b := &Beat{NodeID: p.node.ID(), CPU: usage, At: p.now()}
	data, err := EncodeBeat(b)
	if err != nil {
		return err
	}
	if err := p.publish(p.cfg.Subject, data); err != nil {
		return xerrors.Wrapf(err, "publish to %s", p.cfg.Subject)
	}
	p.sent.Inc(ctx)
	p.logger.Debug("heartbeat published", clog.Float64("cpu", usage))
	return nil
}

// Package discovery 基于 etcd 维护网格拓扑，并把拓扑变化同步到 action 目录。
//
// 每个节点把自己的描述（NodeInfo，msgpack 编码）写到 <namespace>/<nodeID>，
// key 绑定租约并在后台续约；进程退出或租约过期后 key 被删除。
// 所有节点监听同一前缀：
//   - PUT：节点加入节点表并标记可达，按服务差异更新目录
//   - DELETE：节点的全部端点从目录移除，远程节点从节点表删除
//
// watch 断开后从上次处理的 revision 继续；revision 被压缩时重新全量同步。
//
// 基本使用：
//
//	disc, _ := discovery.New(etcdConn, table, cat, &discovery.Config{
//		Namespace: "/meshroute/nodes",
//		TTL:       15 * time.Second,
//	}, discovery.WithLogger(logger))
//	defer disc.Close()
//
//	if err := disc.Start(ctx); err != nil { ... }
//	if err := disc.Announce(ctx, &discovery.NodeInfo{Services: services}); err != nil { ... }
package discovery

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/meshroute/catalog"
	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/connector"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// Discovery etcd 拓扑同步器
type Discovery struct {
	client  *clientv3.Client
	cfg     *Config
	table   *topology.Table
	catalog *catalog.Catalog
	logger  clog.Logger
	events  metrics.Counter

	// 本地节点发布状态
	mu       sync.Mutex
	leaseID  clientv3.LeaseID
	info     *NodeInfo
	kaCancel context.CancelFunc
	kaClosed *atomic.Bool

	// 已应用的远程状态：nodeID -> serviceKey -> serviceState
	stateMu sync.Mutex
	state   map[string]map[string]*serviceState

	started  atomic.Bool
	closed   atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New 创建 Discovery，借用 etcd 连接器的客户端，不负责它的生命周期
func New(conn connector.EtcdConnector, table *topology.Table, cat *catalog.Catalog, cfg *Config, opts ...Option) (*Discovery, error) {
	if conn == nil {
		return nil, xerrors.Mark(xerrors.New("etcd connector is required"), xerrors.ErrInvalidInput)
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Mark(xerrors.New("etcd client is nil, call Connect first"), connector.ErrNotConnected)
	}
	return newDiscovery(client, table, cat, cfg, opts...)
}

func newDiscovery(client *clientv3.Client, table *topology.Table, cat *catalog.Catalog, cfg *Config, opts ...Option) (*Discovery, error) {
	if table == nil || cat == nil {
		return nil, xerrors.Mark(xerrors.New("node table and catalog are required"), xerrors.ErrInvalidInput)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	events, err := opt.meter.Counter("discovery_events_total", "Topology events applied to the catalog")
	if err != nil {
		return nil, xerrors.Wrap(err, "create events counter")
	}

	return &Discovery{
		client:   client,
		cfg:      cfg,
		table:    table,
		catalog:  cat,
		logger:   opt.logger.With(clog.String("node_id", table.LocalID())),
		events:   events,
		state:    make(map[string]map[string]*serviceState),
		stopChan: make(chan struct{}),
	}, nil
}

func (d *Discovery) ensureOpen() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (d *Discovery) prefix() string {
	return d.cfg.Namespace + "/"
}

func (d *Discovery) key(nodeID string) string {
	return d.prefix() + nodeID
}

// Announce 发布本地节点描述并开始续约
//
// info.ID 为空时使用本地节点 ID，不为空时必须与之相同。
// 描述会立即应用到本地目录，不必等待 watch 回传。
func (d *Discovery) Announce(ctx context.Context, info *NodeInfo) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	info, err := d.prepare(info)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil {
		return ErrAlreadyAnnounced
	}

	lease, err := d.client.Grant(ctx, int64(d.cfg.TTL.Seconds()))
	if err != nil {
		d.logger.Error("failed to grant lease", clog.Error(err))
		return xerrors.Wrap(err, "grant lease")
	}

	if err := d.put(ctx, info, lease.ID); err != nil {
		d.revoke(ctx, lease.ID)
		return err
	}

	kaCtx, kaCancel := context.WithCancel(context.Background())
	kaCh, err := d.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		d.revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "keepalive")
	}

	closed := &atomic.Bool{}
	d.leaseID = lease.ID
	d.info = info
	d.kaCancel = kaCancel
	d.kaClosed = closed

	d.wg.Add(1)
	go d.monitorKeepAlive(lease.ID, kaCh, closed)

	d.applyPut(info)
	d.logger.Info("node announced",
		clog.Int("services", len(info.Services)),
		clog.Duration("ttl", d.cfg.TTL))
	return nil
}

// Update 用同一租约覆盖本地节点描述，Seq 自动递增
func (d *Discovery) Update(ctx context.Context, info *NodeInfo) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	info, err := d.prepare(info)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info == nil {
		return ErrNotAnnounced
	}
	info.Seq = d.info.Seq + 1
	if err := d.put(ctx, info, d.leaseID); err != nil {
		return err
	}
	d.info = info
	d.applyPut(info)
	d.logger.Info("node updated", clog.Uint64("seq", info.Seq))
	return nil
}

// Withdraw 撤销租约，本地节点的端点从目录中移除
func (d *Discovery) Withdraw(ctx context.Context) error {
	d.mu.Lock()
	if d.info == nil {
		d.mu.Unlock()
		return ErrNotAnnounced
	}
	leaseID := d.leaseID
	d.kaClosed.Store(true)
	d.kaCancel()
	d.info = nil
	d.leaseID = 0
	d.mu.Unlock()

	d.applyDelete(d.table.LocalID())

	if _, err := d.client.Revoke(ctx, leaseID); err != nil {
		d.logger.Error("failed to revoke lease", clog.Error(err))
		return xerrors.Wrap(err, "revoke lease")
	}
	d.logger.Info("node withdrawn")
	return nil
}

func (d *Discovery) prepare(info *NodeInfo) (*NodeInfo, error) {
	if info == nil {
		return nil, xerrors.Mark(xerrors.New("node info is nil"), ErrInvalidNodeInfo)
	}
	cp := *info
	local := d.table.Local()
	if cp.ID == "" {
		cp.ID = local.ID()
	}
	if cp.ID != local.ID() {
		return nil, xerrors.Mark(xerrors.Errorf("node id %q is not the local node %q", cp.ID, local.ID()), ErrInvalidNodeInfo)
	}
	if cp.Hostname == "" {
		cp.Hostname = local.Hostname()
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (d *Discovery) put(ctx context.Context, info *NodeInfo, leaseID clientv3.LeaseID) error {
	data, err := EncodeNodeInfo(info)
	if err != nil {
		return err
	}
	key := d.key(info.ID)
	if _, err := d.client.Put(ctx, key, string(data), clientv3.WithLease(leaseID)); err != nil {
		d.logger.Error("failed to put node info", clog.String("key", key), clog.Error(err))
		return xerrors.Wrap(err, "put node info")
	}
	return nil
}

func (d *Discovery) revoke(ctx context.Context, leaseID clientv3.LeaseID) {
	if _, err := d.client.Revoke(ctx, leaseID); err != nil {
		d.logger.Error("failed to revoke lease",
			clog.Int64("lease_id", int64(leaseID)),
			clog.Error(err))
	}
}

// monitorKeepAlive 监控租约续约
//
// channel 被调用方关闭（Withdraw/Close）时正常退出；否则说明租约过期或连接中断，
// 只记录错误，不自动重新发布，由上层决定是否重新 Announce。
func (d *Discovery) monitorKeepAlive(leaseID clientv3.LeaseID, ch <-chan *clientv3.LeaseKeepAliveResponse, closed *atomic.Bool) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case resp, ok := <-ch:
			if !ok {
				if closed.Load() {
					d.logger.Debug("keepalive stopped", clog.Int64("lease_id", int64(leaseID)))
					return
				}
				d.logger.Error("keepalive channel closed, lease expired or connection lost",
					clog.Int64("lease_id", int64(leaseID)))
				d.mu.Lock()
				if d.leaseID == leaseID {
					d.kaCancel()
					d.info = nil
					d.leaseID = 0
				}
				d.mu.Unlock()
				return
			}
			d.logger.Debug("keepalive renewed",
				clog.Int64("lease_id", int64(resp.ID)),
				clog.Int64("ttl", resp.TTL))
		}
	}
}

// Start 全量同步一次当前拓扑，然后在后台持续监听变化
//
// ctx 取消或 Close 后停止监听，ctx 应覆盖组件的整个生命周期。
func (d *Discovery) Start(ctx context.Context) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	rev, err := d.sync(ctx)
	if err != nil {
		d.started.Store(false)
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		select {
		case <-d.stopChan:
		case <-ctx.Done():
		}
	}()

	d.wg.Add(1)
	go d.watchLoop(watchCtx, rev)

	d.logger.Info("discovery started", clog.String("namespace", d.cfg.Namespace), clog.Int64("revision", rev))
	return nil
}

// sync 读取前缀下全部节点并替换当前状态，返回读取时的 revision
func (d *Discovery) sync(ctx context.Context) (int64, error) {
	resp, err := d.client.Get(ctx, d.prefix(), clientv3.WithPrefix())
	if err != nil {
		d.logger.Error("failed to list nodes", clog.Error(err))
		return 0, xerrors.Wrap(err, "list nodes")
	}

	infos := make([]*NodeInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		info, err := DecodeNodeInfo(kv.Value)
		if err != nil {
			d.logger.Warn("skip invalid node info", clog.String("key", string(kv.Key)), clog.Error(err))
			continue
		}
		infos = append(infos, info)
	}
	d.resync(infos)
	return resp.Header.Revision, nil
}

func (d *Discovery) watchLoop(ctx context.Context, lastRev int64) {
	defer d.wg.Done()

	for {
		watchCh := d.client.Watch(ctx, d.prefix(), clientv3.WithPrefix(), clientv3.WithRev(lastRev+1))
		d.logger.Debug("watch started", clog.Int64("from_revision", lastRev+1))

	inner:
		for {
			select {
			case <-ctx.Done():
				return
			case wresp, ok := <-watchCh:
				if !ok {
					d.logger.Warn("watch channel closed, will retry", clog.Duration("retry_after", d.cfg.RetryInterval))
					break inner
				}
				if err := wresp.Err(); err != nil {
					if xerrors.Is(err, rpctypes.ErrCompacted) {
						d.logger.Warn("watch revision compacted, resyncing")
						if rev, err := d.sync(ctx); err == nil {
							lastRev = rev
						}
						break inner
					}
					d.logger.Error("watch error, will retry", clog.Error(err))
					break inner
				}
				for _, ev := range wresp.Events {
					if ev.Kv.ModRevision > lastRev {
						lastRev = ev.Kv.ModRevision
					}
					d.handleEvent(ev)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.RetryInterval):
		}
	}
}

func (d *Discovery) handleEvent(ev *clientv3.Event) {
	switch ev.Type {
	case clientv3.EventTypePut:
		info, err := DecodeNodeInfo(ev.Kv.Value)
		if err != nil {
			d.logger.Warn("skip invalid node info", clog.String("key", string(ev.Kv.Key)), clog.Error(err))
			return
		}
		d.applyPut(info)
	case clientv3.EventTypeDelete:
		nodeID := strings.TrimPrefix(string(ev.Kv.Key), d.prefix())
		if nodeID == "" {
			return
		}
		d.applyDelete(nodeID)
	}
}

// Announced 本地节点当前是否处于发布状态
func (d *Discovery) Announced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info != nil
}

// Close 停止监听并撤销租约，幂等
func (d *Discovery) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(d.stopChan)

	var err error
	if d.Announced() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Withdraw(ctx)
		cancel()
	}

	d.wg.Wait()
	d.logger.Info("discovery stopped")
	return err
}

// Package introspect 提供监控与调试 HTTP 接口，用于查看目录与节点表。
//
// 路由：
//   - GET /actions          action 列表，支持 onlyLocal、skipInternal、onlyAvailable、withEndpoints 查询参数
//   - GET /actions/:name    单个 action，附带端点明细，不存在时返回 404
//   - GET /actions/:name/select  按列表策略试选一个端点，available=true 时只选可用端点，失败返回 503 与错误码
//   - GET /nodes            节点表
//   - GET /metrics          Prometheus 抓取入口
//   - GET /healthz          存活检查
package introspect

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/meshroute/catalog"
	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/metrics"
	"github.com/ceyewan/meshroute/topology"
	"github.com/ceyewan/meshroute/xerrors"
)

// Server 监控 HTTP 服务
type Server struct {
	cfg     *Config
	catalog *catalog.Catalog
	table   *topology.Table
	logger  clog.Logger
	meter   metrics.Meter
	engine  *gin.Engine
}

// New 创建 Server，不会开始监听
func New(cat *catalog.Catalog, table *topology.Table, cfg *Config, opts ...Option) (*Server, error) {
	if cat == nil || table == nil {
		return nil, xerrors.Mark(xerrors.New("catalog and node table are required"), xerrors.ErrInvalidInput)
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

	httpMetrics, err := metrics.NewHTTPServerMetrics(opt.meter, "introspect")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http metrics")
	}

	s := &Server{
		cfg:     cfg,
		catalog: cat,
		table:   table,
		logger:  opt.logger,
		meter:   opt.meter,
	}
	s.engine = s.routes(httpMetrics)
	return s, nil
}

func (s *Server) routes(httpMetrics *metrics.HTTPServerMetrics) *gin.Engine {
	gin.SetMode(s.cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinHTTPMiddleware(httpMetrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "nodeID": s.table.LocalID()})
	})
	r.GET("/actions", s.listActions)
	r.GET("/actions/:name", s.getAction)
	r.GET("/actions/:name/select", s.selectAction)
	r.GET("/nodes", s.listNodes)
	r.GET("/metrics", gin.WrapH(s.meter.Handler()))
	return r
}

// Handler 返回路由，便于挂载到已有的 HTTP 服务或在测试中使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 开始监听，阻塞直到 ctx 取消后完成优雅关闭
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定的 listener 上提供服务，语义同 Run
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("introspect http listening", clog.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("introspect http failed", clog.Error(err))
			return xerrors.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("introspect http shutdown failed", clog.Error(err))
		return xerrors.Wrap(err, "shutdown http")
	}
	<-errCh
	s.logger.Info("introspect http stopped")
	return nil
}

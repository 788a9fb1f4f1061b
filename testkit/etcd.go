package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/meshroute/connector"
)

// NewEtcdContainerConfig 启动 etcd 容器并返回连接配置
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "testcontainer-etcd",
		Endpoints:   []string{host + ":" + mappedPort.Port()},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdContainerConnector 启动 etcd 容器并返回已连接的连接器
func NewEtcdContainerConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(NewEtcdContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// NewEtcdContainerClient 启动 etcd 容器并返回原生客户端
func NewEtcdContainerClient(t *testing.T) *clientv3.Client {
	t.Helper()
	return NewEtcdContainerConnector(t).GetClient()
}

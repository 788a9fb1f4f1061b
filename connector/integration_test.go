package connector_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/meshroute/connector"
	"github.com/ceyewan/meshroute/testkit"
)

func TestEtcdConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	conn := testkit.NewEtcdContainerConnector(t)
	ctx := context.Background()

	t.Run("连接幂等且健康", func(t *testing.T) {
		require.NoError(t, conn.Connect(ctx))
		assert.True(t, conn.IsHealthy())
		assert.NoError(t, conn.HealthCheck(ctx))
	})

	t.Run("客户端读写", func(t *testing.T) {
		client := conn.GetClient()
		key := "/meshroute-test/" + testkit.NewID()
		_, err := client.Put(ctx, key, "node-1")
		require.NoError(t, err)

		resp, err := client.Get(ctx, key)
		require.NoError(t, err)
		require.Len(t, resp.Kvs, 1)
		assert.Equal(t, "node-1", string(resp.Kvs[0].Value))
	})
}

func TestNATSConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	conn := testkit.NewNATSContainerConnector(t)
	ctx := context.Background()

	require.NoError(t, conn.Connect(ctx))
	assert.NoError(t, conn.HealthCheck(ctx))

	nc := conn.GetClient()
	assert.Equal(t, nats.CONNECTED, nc.Status())

	subject := "meshroute.test." + testkit.NewID()
	received := make(chan string, 1)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	require.NoError(t, nc.Publish(subject, []byte("beat")))
	select {
	case msg := <-received:
		assert.Equal(t, "beat", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
	assert.ErrorIs(t, conn.HealthCheck(ctx), connector.ErrNotConnected)
}

// Package connector 为 meshroute 提供 etcd 与 NATS 的连接管理能力。
//
// etcd 是拓扑的事实来源（discovery 组件），NATS 承载 CPU 心跳（heartbeat 组件）。
//
// 约定：
//   - NewXXX() 只校验配置，Connect() 时才建立连接，Connect 可重复调用
//   - Connector 拥有底层连接的生命周期，discovery / heartbeat 只借用，不调用 Close()
//   - 应用层按 LIFO 顺序释放资源：先关闭依赖连接的组件，再关闭连接器
//
// 基本使用：
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, connector.WithLogger(logger), connector.WithMeter(meter))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全。
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 发送测试请求验证连接可用性，并刷新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的健康状态，无阻塞
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后返回 nil
	GetClient() T
}

// EtcdConnector etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// NATSConnector NATS 连接器，内置自动重连
type NATSConnector interface {
	TypedConnector[*nats.Conn]
}

package connector

import (
	"time"

	"github.com/ceyewan/meshroute/xerrors"
)

// EtcdConfig etcd 连接配置
type EtcdConfig struct {
	Name      string   `mapstructure:"name"`      // 连接器名称 (默认: "default")
	Endpoints []string `mapstructure:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username"`  // [可选] 认证用户
	Password  string   `mapstructure:"password"`  // [可选] 认证密码

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 连接超时 (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // gRPC 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // gRPC 心跳超时 (默认: 3s)
}

// SetDefaults 设置默认值
func (c *EtcdConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

// Validate 校验配置，调用前会先填充默认值
func (c *EtcdConfig) Validate() error {
	c.SetDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Mark(xerrors.New("etcd 端点不能为空"), ErrConfig)
	}
	if c.Username != "" && c.Password == "" {
		return xerrors.Mark(xerrors.New("etcd 设置了用户名但缺少密码"), ErrConfig)
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	Name     string `mapstructure:"name"`     // 连接器名称 (默认: "default")
	URL      string `mapstructure:"url"`      // [必填] 连接地址，如 "nats://127.0.0.1:4222"
	Username string `mapstructure:"username"` // [可选] 用户名
	Password string `mapstructure:"password"` // [可选] 密码
	Token    string `mapstructure:"token"`    // [可选] 令牌

	Timeout       time.Duration `mapstructure:"timeout"`        // 连接超时 (默认: 5s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // 最大重连次数 (默认: 60)
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 重连等待时间 (默认: 2s)
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // ping 间隔 (默认: 2m)
	MaxPingsOut   int           `mapstructure:"max_pings_out"`  // 最大未响应 ping 数 (默认: 2)
}

// SetDefaults 设置默认值
func (c *NATSConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 2 * time.Minute
	}
	if c.MaxPingsOut == 0 {
		c.MaxPingsOut = 2
	}
}

// Validate 校验配置，调用前会先填充默认值
func (c *NATSConfig) Validate() error {
	c.SetDefaults()
	if c.URL == "" {
		return xerrors.Mark(xerrors.New("NATS URL 不能为空"), ErrConfig)
	}
	if c.Token != "" && c.Username != "" {
		return xerrors.Mark(xerrors.New("NATS 令牌与用户名密码不能同时使用"), ErrConfig)
	}
	return nil
}

package discovery

import (
	"strings"
	"time"

	"github.com/ceyewan/meshroute/xerrors"
)

// Config discovery 组件配置
type Config struct {
	// Namespace etcd key 前缀，默认 "/meshroute/nodes"
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`

	// TTL 节点描述的租约时长，默认 15s，最小 1s
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`

	// RetryInterval watch 断开后的重试间隔，默认 1s
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval" json:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/meshroute/nodes"
	}
	c.Namespace = strings.TrimRight(c.Namespace, "/")
	if c.TTL == 0 {
		c.TTL = 15 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Namespace == "" {
		return xerrors.Mark(xerrors.New("namespace must not be root"), xerrors.ErrInvalidInput)
	}
	if c.TTL < time.Second {
		return xerrors.Mark(xerrors.Errorf("ttl must be >= 1s, got %s", c.TTL), ErrInvalidTTL)
	}
	if c.RetryInterval < 0 {
		return xerrors.Mark(xerrors.New("retry interval must not be negative"), xerrors.ErrInvalidInput)
	}
	return nil
}

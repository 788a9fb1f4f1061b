package heartbeat

import (
	"time"

	"github.com/ceyewan/meshroute/xerrors"
)

// Config 心跳配置
type Config struct {
	// Subject NATS 主题，默认 "meshroute.heartbeat"
	Subject string `mapstructure:"subject" yaml:"subject" json:"subject"`

	// Interval 采样与发布间隔，默认 5s
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

func (c *Config) setDefaults() {
	if c.Subject == "" {
		c.Subject = "meshroute.heartbeat"
	}
	if c.Interval == 0 {
		c.Interval = 5 * time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Interval < 10*time.Millisecond {
		return xerrors.Mark(xerrors.Errorf("interval too small: %s", c.Interval), xerrors.ErrInvalidInput)
	}
	return nil
}

package catalog

import (
	"github.com/ceyewan/meshroute/strategy"
	"github.com/ceyewan/meshroute/xerrors"
)

// Config 目录配置
type Config struct {
	// InternalPrefix 以此前缀开头的 action 视为内部 action，List 的 SkipInternal 会排除它们
	InternalPrefix string `mapstructure:"internal_prefix" json:"internalPrefix" yaml:"internal_prefix"`

	// RetainEmpty 为 true 时最后一个端点移除后保留空列表，默认回收
	RetainEmpty bool `mapstructure:"retain_empty" json:"retainEmpty" yaml:"retain_empty"`

	// DefaultStrategy action 未声明策略时使用的策略名称
	DefaultStrategy string `mapstructure:"default_strategy" json:"defaultStrategy" yaml:"default_strategy"`

	// DefaultStrategyOptions 默认策略的配置，action 声明了 strategyOptions 时以 action 为准
	DefaultStrategyOptions map[string]any `mapstructure:"default_strategy_options" json:"defaultStrategyOptions" yaml:"default_strategy_options"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		InternalPrefix:  "$",
		DefaultStrategy: strategy.NameRoundRobin,
	}
}

func (c *Config) setDefaults() {
	if c.InternalPrefix == "" {
		c.InternalPrefix = "$"
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = strategy.NameRoundRobin
	}
}

func (c *Config) validate(reg *strategy.Registry) error {
	c.setDefaults()
	if _, err := reg.Lookup(c.DefaultStrategy); err != nil {
		return xerrors.Mark(xerrors.Wrap(err, "default strategy"), xerrors.ErrInvalidInput)
	}
	return nil
}

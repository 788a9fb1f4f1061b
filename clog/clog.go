// Package clog 为 meshroute 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 层级命名空间：每个组件通过 WithLogger 注入时追加自己的命名空间，
//     例如 "meshnode.catalog"、"meshnode.discovery"
//   - 运行时调整级别（SetLevel），配合 config.Watch 实现热更新
//   - Context 字段提取
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("node joined", clog.String("node_id", "node-1"))
//
// 组件内部使用：
//
//	cat, _ := catalog.New(nodes, cfg, catalog.WithLogger(logger))
//	// 日志中 namespace=catalog
package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)

	handler, err := newHandler(config, options)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{handler: handler, options: options}, nil
}

// Must 类似 New，出错时 panic，仅用于初始化阶段
func Must(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return l
}

package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 创建子 Logger：
//
//	childLogger := logger.With(clog.String("node_id", "node-1"))
//	namespacedLogger := logger.WithNamespace("catalog")
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本，会按 WithContextField 配置提取字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger，命名空间以 "." 连接
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对同一 New 派生出的所有子 Logger 生效
	SetLevel(level Level) error

	// Flush 强制同步缓冲区
	Flush()
}

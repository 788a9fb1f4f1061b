package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// NamespaceKey 日志中命名空间的字段名
const NamespaceKey = "namespace"

type loggerImpl struct {
	handler   *levelHandler
	options   *options
	baseAttrs []slog.Attr
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields))
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)
	return &loggerImpl{handler: l.handler, options: l.options, baseAttrs: attrs}
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	next := *l.options
	next.namespaceParts = append(append([]string{}, l.options.namespaceParts...), parts...)
	return &loggerImpl{handler: l.handler, options: &next, baseAttrs: l.baseAttrs}
}

func (l *loggerImpl) SetLevel(level Level) error {
	l.handler.levelVar.Set(level.slogLevel())
	return nil
}

// Flush slog handler 均为同步写入，文件输出时执行 Sync
func (l *loggerImpl) Flush() {
	if f, ok := l.handler.closer.(*os.File); ok {
		_ = f.Sync()
	}
}

func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level.slogLevel()) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip: runtime.Callers, log, Info/Error 等
	record := slog.NewRecord(time.Now(), level.slogLevel(), msg, pcs[0])

	if len(l.options.namespaceParts) > 0 {
		record.AddAttrs(slog.String(NamespaceKey, strings.Join(l.options.namespaceParts, ".")))
	}
	record.AddAttrs(l.baseAttrs...)
	record.AddAttrs(fields...)
	for _, cf := range l.options.contextFields {
		if v := ctx.Value(cf.Key); v != nil {
			record.AddAttrs(slog.Any(cf.FieldName, v))
		}
	}

	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		l.Flush()
		os.Exit(1)
	}
}

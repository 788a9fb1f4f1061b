package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// levelHandler 封装 slog.Handler，持有可动态调整的级别
type levelHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
	closer   io.Closer
}

// newHandler 构造顺序：writer -> handler options -> base handler -> wrapper
func newHandler(config *Config, options *options) (*levelHandler, error) {
	w, closer, err := resolveWriter(config, options)
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: newReplaceAttr(config),
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &levelHandler{Handler: handler, levelVar: levelVar, closer: closer}, nil
}

func resolveWriter(config *Config, options *options) (io.Writer, io.Closer, error) {
	if options.writer != nil {
		return options.writer, nil, nil
	}
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
}

// newReplaceAttr 统一处理 Level/Time/Source 字段
func newReplaceAttr(config *Config) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.LevelKey:
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			switch {
			case level <= slog.LevelDebug:
				a.Value = slog.StringValue("DEBUG")
			case level <= slog.LevelInfo:
				a.Value = slog.StringValue("INFO")
			case level <= slog.LevelWarn:
				a.Value = slog.StringValue("WARN")
			case level <= slog.LevelError:
				a.Value = slog.StringValue("ERROR")
			default:
				a.Value = slog.StringValue("FATAL")
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok {
				return slog.String("caller", fmt.Sprintf("%s:%d", trimSourcePath(source.File, config.SourceRoot), source.Line))
			}
		}
		return a
	}
}

// trimSourcePath 裁剪调用文件路径，无法裁剪时保留最后两级目录
func trimSourcePath(fileName, sourceRoot string) string {
	if sourceRoot != "" {
		if idx := strings.Index(fileName, sourceRoot); idx >= 0 {
			return strings.TrimPrefix(fileName[idx+len(sourceRoot):], "/")
		}
	}
	dir, file := filepath.Split(fileName)
	return filepath.Join(filepath.Base(dir), file)
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/meshroute/clog"
	"github.com/ceyewan/meshroute/xerrors"
)

type loader struct {
	v         *viper.Viper
	opts      *options
	mu        sync.Mutex
	watches   map[string][]chan Event
	oldValues map[string]any
}

func newLoader(opts *options) *loader {
	return &loader{
		v:         viper.New(),
		opts:      opts,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}
}

func (l *loader) Load(ctx context.Context) error {
	l.v.SetConfigName(l.opts.name)
	l.v.SetConfigType(l.opts.fileType)
	for _, path := range l.opts.paths {
		l.v.AddConfigPath(path)
	}
	for k, v := range l.opts.defaults {
		l.v.SetDefault(k, v)
	}

	l.v.SetEnvPrefix(l.opts.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.loadDotEnv(); err != nil {
		l.opts.logger.Debug("no .env file loaded", clog.Error(err))
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !xerrors.As(err, &notFound) {
			return xerrors.Wrapf(err, "read config file %s", l.opts.name)
		}
		l.opts.logger.Warn("no configuration file found, using defaults and environment",
			clog.String("name", l.opts.name),
			clog.Any("paths", l.opts.paths))
	}

	if err := l.loadEnvironmentConfig(); err != nil {
		return err
	}

	if err := l.Validate(); err != nil {
		return err
	}

	if l.v.ConfigFileUsed() != "" {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if err := l.loadEnvironmentConfig(); err != nil {
				l.opts.logger.Error("reload environment config failed", clog.Error(err))
			}
			l.notifyWatches()
		})
		l.v.WatchConfig()
		l.opts.logger.Info("configuration loaded", clog.String("file", l.v.ConfigFileUsed()))
	}

	return nil
}

// loadDotEnv 依次尝试当前目录和各搜索路径下的 .env
func (l *loader) loadDotEnv() error {
	var loaded bool
	var lastErr error

	candidates := []string{".env"}
	for _, path := range l.opts.paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}
	for _, c := range candidates {
		if err := godotenv.Load(c); err == nil {
			loaded = true
		} else {
			lastErr = err
		}
	}

	if !loaded {
		return lastErr
	}
	return nil
}

// loadEnvironmentConfig 合并 <name>.<env>.<type>
func (l *loader) loadEnvironmentConfig() error {
	env := os.Getenv(l.opts.envPrefix + "_ENV")
	if env == "" {
		return nil
	}

	envConfigName := l.opts.name + "." + env
	l.v.SetConfigName(envConfigName)
	defer l.v.SetConfigName(l.opts.name)

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !xerrors.As(err, &notFound) {
			return xerrors.Wrapf(err, "merge environment config %s", envConfigName)
		}
		l.opts.logger.Info("no environment configuration file", clog.String("env", env))
		return nil
	}
	l.opts.logger.Info("environment configuration merged", clog.String("env", env))
	return nil
}

func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

func (l *loader) Unmarshal(v any) error {
	return xerrors.Wrap(l.v.Unmarshal(v), "unmarshal config")
}

func (l *loader) UnmarshalKey(key string, v any) error {
	return xerrors.Wrapf(l.v.UnmarshalKey(key, v), "unmarshal config key %s", key)
}

func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Mark(xerrors.New("watch key is empty"), xerrors.ErrInvalidInput)
	}

	l.mu.Lock()
	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	if _, ok := l.oldValues[key]; !ok {
		l.oldValues[key] = l.v.Get(key)
	}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()

	return ch, nil
}

func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans := l.watches[key]
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
}

func (l *loader) Validate() error {
	if len(l.v.AllSettings()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

// notifyWatches 对比每个被监听 key 的新旧值，变化时投递事件；通道满则丢弃
func (l *loader) notifyWatches() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		l.oldValues[key] = newValue

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: time.Now(),
		}
		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.opts.logger.Warn("config watch channel full, event dropped", clog.String("key", key))
			}
		}
	}
}

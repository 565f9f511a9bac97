// Package daemon composes the session process: config, logging, the
// local cache, both transports, and the sync engine, wired together
// with fx and torn down in reverse order on shutdown.
package daemon

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/bus"
	"github.com/parleychat/parley/internal/channel"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/lock"
	"github.com/parleychat/parley/internal/logging"
	"github.com/parleychat/parley/internal/session"
	"github.com/parleychat/parley/internal/status"
	"github.com/parleychat/parley/internal/store"
	intsync "github.com/parleychat/parley/internal/sync"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ConfigPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAPIClient,
			provideChannelClient,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPIClient(cfg *config.Config) *api.Client {
	return api.New(cfg.ServerURL, cfg.Token)
}

func provideChannelClient(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *channel.Client {
	return channel.NewClient(channel.Options{
		URL:       channelURL(cfg),
		Token:     cfg.Token,
		BaseDelay: cfg.ReconnectBase(),
		MaxDelay:  cfg.ReconnectMax(),
	}, b, machine, logger)
}

// channelURL derives the websocket endpoint from the API base URL when
// the config does not pin one explicitly.
func channelURL(cfg *config.Config) string {
	if cfg.ChannelURL != "" {
		return cfg.ChannelURL
	}
	u := cfg.ServerURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimRight(u, "/") + "/realtime"
}

func provideEngine(cfg *config.Config, apiClient *api.Client, ch *channel.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.New(apiClient, ch, db, b, intsync.Options{
		ViewerID:   cfg.ViewerID,
		PageSize:   cfg.PageSize,
		TypingIdle: cfg.TypingIdle(),
	}, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, ch *channel.Client, engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine must be consuming bus events before the
			// channel starts delivering them.
			engine.Start(context.Background())
			ch.Start(context.Background())
			logger.Info("session started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ch.Stop()
			engine.Stop()
			_ = machine.Transition(status.Closed)
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lazypower/tether/internal/cache"
	"github.com/lazypower/tether/internal/config"
	"github.com/lazypower/tether/internal/connectivity"
	"github.com/lazypower/tether/internal/notify"
	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/reconcile"
	"github.com/lazypower/tether/internal/remote"
	"github.com/lazypower/tether/internal/server"
	"github.com/lazypower/tether/internal/store"
	"github.com/lazypower/tether/internal/usage"
	"github.com/lazypower/tether/internal/voice"
)

// app is every component wired from one configuration.
type app struct {
	cfg    config.Config
	db     *store.DB
	dbPath string
	server.Services
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Config{}, fmt.Errorf("resolve config path: %w", err)
		}
	}
	return config.Load(path)
}

// openApp loads configuration, opens the database and builds the components.
// Callers must close a.db.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := slog.Default()
	kv := db.KV(log.With("component", "store"))
	client := remote.New(cfg.Remote)
	probe := connectivity.NewHTTPProbe(cfg.Remote.BaseURL)

	var sched notify.Scheduler = notify.Noop{}
	if cfg.Calendar.Enabled {
		cal, err := notify.NewCalendarScheduler(ctx, cfg.Calendar)
		if err != nil {
			log.Warn("calendar notifications disabled", "error", err)
		} else {
			sched = cal
		}
	}

	a := &app{cfg: cfg, db: db, dbPath: dbPath}
	a.Probe = probe

	a.Reminders = reconcile.New(kv, client, sched, log.With("component", "reconcile"))
	a.Reminders.UserID = cfg.Remote.UserID

	a.Queue = queue.New(kv, client, probe, log.With("component", "queue"))
	a.Queue.MaxRetries = cfg.Queue.MaxRetries
	a.Queue.RetryDelay = cfg.Queue.RetryDelay

	a.Cache = cache.New(kv, log.With("component", "cache"))
	a.Cache.MaxSize = cfg.Cache.MaxSize
	a.Cache.Threshold = cfg.Cache.Threshold
	a.Cache.Retention = cfg.Cache.Retention
	a.Cache.KeepUses = cfg.Cache.KeepUses

	a.Usage = usage.New(kv, log.With("component", "usage"))
	a.Usage.Limit = cfg.Usage.MonthlyLimit
	a.Queue.Allow = a.Usage.CanRecord

	a.Voice = &voice.Pipeline{
		Limiter:     a.Usage,
		Queue:       a.Queue,
		Cache:       a.Cache,
		Transcriber: client,
		Cleaner:     client,
		Probe:       probe,
		Log:         log.With("component", "voice"),
	}
	return a, nil
}

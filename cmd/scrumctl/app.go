package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/yukikurage/scrum-board/internal/cache"
	"github.com/yukikurage/scrum-board/internal/client"
	"github.com/yukikurage/scrum-board/internal/session"
	"github.com/yukikurage/scrum-board/internal/tracker"
)

// app is everything a logged in command needs.
type app struct {
	cfg     *Config
	logger  *slog.Logger
	client  *client.Client
	manager *session.Manager
	cache   *cache.Cache
	tracker *tracker.Tracker
	planner *tracker.Planner
	userID  uint64
	close   func()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cfg *Config) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case BackendRedis:
		pool := session.NewRedisPool(cfg.RedisAddr)
		return session.NewRedisStore(pool), func() { pool.Close() }, nil
	case BackendMemory:
		return session.NewMemoryStore(), func() {}, nil
	default:
		if err := os.MkdirAll(configDir(), 0o700); err != nil {
			return nil, nil, err
		}
		store, err := session.OpenSQLite(cfg.SessionDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func loadApp(configPath string) (*app, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	creds, err := loadCredentials(cfg.CookieFile)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)
	c, err := client.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	c.SetCookies(creds.httpCookies())

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	manager := session.NewManager(store)
	entities := cache.New()
	entities.Subscribe(func(ev cache.Event) {
		logger.Debug("cache updated", "kind", ev.Kind, "id", ev.ID, "removed", ev.Removed)
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  c,
		manager: manager,
		cache:   entities,
		tracker: tracker.New(c, manager, entities, logger, creds.UserID),
		planner: tracker.NewPlanner(c, entities, logger),
		userID:  creds.UserID,
		close:   closeStore,
	}, nil
}

func parseID(arg, what string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"peerlink/internal/cache"
	"peerlink/internal/config"
	"peerlink/internal/engage"
	"peerlink/internal/graph"
	"peerlink/internal/ingest"
	"peerlink/internal/logging"
	"peerlink/internal/recommend"
	"peerlink/internal/store/memory"
	"peerlink/internal/store/rediscache"
	"peerlink/internal/store/sqlite"
)

// dataStore is what a storage driver must provide: the social dataset for
// seeding and scoring.
type dataStore interface {
	ingest.Sink
	ingest.ProfileReadWriter
	recommend.ProfileStore
	recommend.LikeCommentSource
	recommend.RelationshipStore
}

type app struct {
	cfg     config.Config
	data    dataStore
	follows *graph.Follows // set when graph.uri is configured
	records cache.RecordStore
	events  engage.EventLog // nil without sqlite storage
	engine  *recommend.Engine
	cache   *cache.Manager
	closers []func() error
}

// loadConfig reads path, falling back to defaults plus environment when the file is absent.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := logging.Init(cfg.Logging.Mode, cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	a := &app{cfg: cfg}
	var db *sqlite.DB
	var mem *memory.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		var err error
		db, err = sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Storage.DBPath, err)
		}
		a.closers = append(a.closers, db.Close)
		a.data = db
		a.events = db
	default:
		mem = memory.New()
		a.data = mem
	}

	var rel recommend.RelationshipStore = a.data
	if cfg.Graph.URI != "" {
		client, err := graph.NewNeo4jClient(ctx, graph.OptionsFrom(cfg.Graph))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.follows = graph.NewFollows(client)
		a.closers = append(a.closers, func() error { return a.follows.Close(context.Background()) })
		rel = a.follows
	}

	switch cfg.Cache.Backend {
	case "sqlite":
		a.records = db
	case "redis":
		rs, err := rediscache.New(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.KeyPrefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		a.closers = append(a.closers, rs.Close)
		a.records = rs
	default:
		if mem == nil {
			mem = memory.New()
		}
		a.records = mem
	}

	engine, err := recommend.NewEngine(cfg.Recommend, rel, recommend.InteractionUnion{Source: a.data}, a.data)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	a.cache = cache.NewManager(cfg.Recommend, engine, a.records)
	logging.Debug("app_open", map[string]any{"storage": cfg.Storage.Driver, "cache": cfg.Cache.Backend, "graph": cfg.Graph.URI != ""})
	return a, nil
}

// seed loads a dataset fixture into the configured stores.
func (a *app) seed(ctx context.Context, path string) (ingest.Stats, error) {
	ds, err := ingest.LoadDataset(path)
	if err != nil {
		return ingest.Stats{}, err
	}
	var mirrors []ingest.FollowWriter
	if a.follows != nil {
		mirrors = append(mirrors, a.follows)
	}
	return ingest.Seed(ctx, ds, a.data, mirrors...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn("close_error", map[string]any{"error": err})
		}
	}
	logging.Sync()
}

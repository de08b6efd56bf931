package service

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/audit"
	"github.com/conduit-lang/modelmig/internal/cache"
	"github.com/conduit-lang/modelmig/internal/config"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/storage"
)

// LoadRegistry loads the catalogue from dir, or the embedded catalogue when dir is empty
func LoadRegistry(dir string) (*metamodel.Registry, error) {
	if dir == "" {
		return metamodel.Default()
	}
	return metamodel.LoadDir(dir)
}

// FromConfig builds a service and the collaborators selected in cfg
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (svc *Service, err error) {
	registry, err := LoadRegistry(cfg.Migration.CatalogueDir)
	if err != nil {
		return nil, err
	}

	opts := Options{
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
		Workers:  cfg.Migration.Workers,
	}
	defer func() {
		if err != nil {
			for _, closer := range opts.closers {
				err = multierr.Append(err, closer())
			}
		}
	}()

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		c := cache.NewMemoryCache(cache.Config{DefaultTTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix})
		opts.Cache = c
		opts.closers = append(opts.closers, c.Close)
	case config.BackendRedis:
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Cache:    cache.Config{DefaultTTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix},
		})
		if err != nil {
			return nil, err
		}
		opts.Cache = c
		opts.closers = append(opts.closers, c.Close)
	}

	switch cfg.Storage.Backend {
	case config.BackendDisk:
		store, err := storage.NewDiskStore(cfg.Storage.ModelFolder)
		if err != nil {
			return nil, err
		}
		opts.Store = store
	case config.BackendMemory:
		opts.Store = storage.NewMemoryStore()
	}

	if cfg.Audit.Driver != "" {
		tracker, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		opts.closers = append(opts.closers, tracker.Close)
		if err := tracker.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare audit trail: %w", err)
		}
		opts.Recorder = tracker
	}

	logger.Info("migration service ready",
		zap.Strings("kinds", registry.Kinds()),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("audit", opts.Recorder != nil))
	return New(registry, opts), nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/topolab"
	"github.com/aretw0/topolab/internal/config"
	"github.com/aretw0/topolab/pkg/adapters/badger"
	"github.com/aretw0/topolab/pkg/adapters/file"
	"github.com/aretw0/topolab/pkg/adapters/memory"
	"github.com/aretw0/topolab/pkg/adapters/nats"
	"github.com/aretw0/topolab/pkg/adapters/redis"
	"github.com/aretw0/topolab/pkg/ports"
)

// buildController wires the controller described by cfg: its project
// registry, its notification sinks and the computes it starts with.
// The returned cleanup releases the backends.
func buildController(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...topolab.Option) (*topolab.Controller, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []topolab.Option{
		topolab.WithLogger(logger),
		topolab.WithProjectsPath(cfg.ProjectsPath),
		topolab.WithImages(cfg.Images),
		topolab.WithLocal(cfg.Server.Local),
	}

	var store ports.ProjectStore
	switch cfg.Store.Kind {
	case config.StoreRedis:
		s := redis.New(cfg.Store.RedisAddr)
		if err := s.Client().Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("failed to reach redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		closers = append(closers, func() { _ = s.Client().Close() })
		store = s
		opts = append(opts, topolab.WithLocker(redis.NewLocker(s.Client(), redis.DefaultPrefix)))
	case config.StoreBadger:
		s, err := badger.Open(cfg.Store.BadgerPath)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = s.Close() })
		store = s
	case config.StoreFile:
		store = file.New(cfg.Store.FilePath)
	default:
		store = memory.NewStore()
	}
	opts = append(opts, topolab.WithStore(store))
	logger.Debug("Project registry ready", "kind", cfg.Store.Kind)

	if cfg.NATSURL != "" {
		pub, err := nats.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, pub.Close)
		opts = append(opts, topolab.WithPublisher(pub))
	}

	ctl := topolab.New(append(opts, extra...)...)
	for _, c := range cfg.Computes {
		if _, err := ctl.AddCompute(ctx, c.ID, c.Connection()); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to register compute %s: %w", c.ID, err)
		}
	}
	return ctl, cleanup, nil
}

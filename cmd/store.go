package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/repositories"
	"github.com/desertthunder/spotauth/internal/shared"
)

// openStore builds the session store selected by store.driver.
//
// Durable stores seal refresh tokens, so they require store.encryption_key.
func openStore(ctx context.Context, config *shared.Config, logger *log.Logger) (models.SessionStore, func() error, error) {
	noop := func() error { return nil }

	switch config.Store.Driver {
	case "", "memory":
		logger.Warn("using the in-memory session store; sessions are lost on restart")
		return repositories.NewMemoryStore(), noop, nil

	case "sqlite":
		sealer, err := newSealer(config)
		if err != nil {
			return nil, nil, err
		}
		db, err := shared.OpenDatabase(config.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("opened sqlite session store", "path", config.Database.Path)
		return repositories.NewSessionRepository(db, sealer), db.Close, nil

	case "redis":
		sealer, err := newSealer(config)
		if err != nil {
			return nil, nil, err
		}
		client, err := repositories.NewRedisClient(ctx, config.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("opened redis session store", "addr", config.Redis.Addr)
		return repositories.NewRedisSessionStore(client, sealer, config.Redis.Prefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store driver %q", shared.ErrInvalidConfig, config.Store.Driver)
	}
}

func newSealer(config *shared.Config) (*shared.Sealer, error) {
	key, err := config.Store.Key()
	if err != nil {
		return nil, err
	}
	return shared.NewSealer(key)
}

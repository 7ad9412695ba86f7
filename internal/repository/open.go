package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/database"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"

	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the persister selected by cfg.Storage.Driver, wrapped in a
// memory failover when cfg.Storage.Failover is set. The closer releases the
// underlying connection.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Persister, io.Closer, error) {
	primary, closer, err := openDriver(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Storage.Failover && cfg.Storage.Driver != config.StorageMemory {
		logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage failover to memory enabled")
		return NewFailoverRepository(primary, NewMemoryRepository(cfg.Storage.Key), logger), closer, nil
	}
	return primary, closer, nil
}

func openDriver(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Persister, io.Closer, error) {
	key := cfg.Storage.Key

	switch cfg.Storage.Driver {
	case config.StorageFile:
		return NewFileRepository(cfg.Storage.FilePath), nopCloser{}, nil

	case config.StorageSQLite:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Database.Path, err)
		}
		return NewSQLRepository(db, key), db, nil

	case config.StoragePostgres:
		pg := cfg.Database.Postgres
		db, err := database.NewPostgresDB(pg.DSN(), pg.MaxConnections, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres %s/%s: %w", pg.Host, pg.DBName, err)
		}
		return NewSQLRepository(db, key), db, nil

	case config.StorageRedis:
		client := NewRedisClient(cfg.Redis)
		if err := Ping(ctx, client); err != nil {
			if !cfg.Storage.Failover {
				_ = client.Close()
				return nil, nil, err
			}
			logger.Warn().Err(err).Msg("redis unreachable, starting on failover storage")
		}
		return NewRedisRepository(client, key, cfg.Redis.TTL), client, nil

	case config.StorageMemory:
		return NewMemoryRepository(key), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

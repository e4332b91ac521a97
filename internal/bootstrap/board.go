// Package bootstrap builds the host table driver and board adapter selected
// by configuration. The server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/filetable"
	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
	"github.com/fastygo/taskboard/internal/infrastructure/lark"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/repository/bitable"
	"github.com/fastygo/taskboard/repository/memory"
	pgRepo "github.com/fastygo/taskboard/repository/postgres"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
)

// Board is everything built around the host table. Pool, Redis and Bolt are
// nil when the selected driver does not use them.
type Board struct {
	Driver  string
	Table   hosttable.Table
	Adapter *bitable.Adapter
	Pool    *pgxpool.Pool
	Redis   *goRedis.Client
	Bolt    *filetable.Store
}

// AdapterOptions turns the board file into adapter options.
func AdapterOptions(cfg *config.Config) bitable.Options {
	opts := bitable.Options{
		Names:    bitable.DefaultFieldNames().Merge(cfg.Board.Fields),
		Groups:   cfg.Board.Groups,
		MinRetry: cfg.Table.MinRetry,
		MaxRetry: cfg.Table.MaxRetry,
	}
	for _, u := range cfg.Board.Users {
		opts.Users = append(opts.Users, domain.User{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL})
	}
	return opts
}

// Build opens the configured driver and registers its resources with
// manager. It does not initialize the adapter; the first board load does.
func Build(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (*Board, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := AdapterOptions(cfg)
	groups := opts.Groups
	if len(groups) == 0 {
		groups = bitable.DefaultGroups()
	}
	schema := bitable.DefaultSchema(opts.Names, groups)

	b := &Board{Driver: cfg.Table.Driver}

	switch cfg.Table.Driver {
	case config.DriverLark:
		tokens, err := b.tokenRepository(ctx, cfg, manager, logger)
		if err != nil {
			return nil, err
		}
		b.Table = lark.New(lark.Config{
			BaseURL:   cfg.Lark.BaseURL,
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			AppToken:  cfg.Lark.AppToken,
			TableID:   cfg.Lark.TableID,
			Timeout:   cfg.Lark.Timeout,
		}, tokens, logger)

	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, logger); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: postgres: %w", err)
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		table := pgRepo.NewTableRepository(pool)
		if err := table.SeedSchema(ctx, schema); err != nil {
			return nil, fmt.Errorf("bootstrap: seed postgres schema: %w", err)
		}
		b.Pool = pool
		b.Table = table

	case config.DriverBolt:
		store, err := filetable.Open(cfg.Bolt.Path, schema)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open %s: %w", cfg.Bolt.Path, err)
		}
		manager.RegisterCloser("bolt", store)
		b.Bolt = store
		b.Table = store

	case config.DriverNone:
		logger.Info("no host table configured, serving sample data")

	default:
		return nil, fmt.Errorf("bootstrap: unknown table driver %q", cfg.Table.Driver)
	}

	b.Adapter = bitable.New(b.Table, opts, logger)
	return b, nil
}

// tokenRepository uses Redis when REDIS_URL is set so replicas share one
// tenant token.
func (b *Board) tokenRepository(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (repository.TokenRepository, error) {
	if cfg.Redis.URL == "" {
		return memory.NewTokenRepository(), nil
	}
	client, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: redis: %w", err)
	}
	manager.Register("redis", func(context.Context) error {
		return client.Close()
	})
	b.Redis = client
	logger.Info("tenant tokens cached in redis")
	return redisRepo.NewTokenRepository(client), nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/decorhub/storefront/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis not configured")

// needs selects which backends a command connects to.
type needs uint8

const (
	needDB needs = 1 << iota
	needRedis
	// wantRedis connects to Redis when it is configured and carries on without
	// it otherwise.
	wantRedis
)

type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// openInfra connects the requested backends. Configuration problems are
// reported before anything is dialed.
func openInfra(ctx context.Context, cmdCtx *commandContext, n needs) (*infra, error) {
	haveRedis := cmdCtx.Config.Redis.Configured()
	if n&needRedis != 0 && !haveRedis {
		return nil, errRedisNotConfigured
	}

	in := &infra{}
	if n&needDB != 0 {
		db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
			DBConfig: cmdCtx.Config.Postgres,
			Logger:   cmdCtx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		in.DB = db
	}

	if n&(needRedis|wantRedis) != 0 {
		if !haveRedis {
			cmdCtx.Logger.Info("no redis configuration detected; skipping redis connection")
			return in, nil
		}
		client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if err != nil {
			err = fmt.Errorf("connect redis: %w", err)
			return nil, errors.Join(err, in.close())
		}
		in.Redis = client
	}
	return in, nil
}

// Close releases every backend and logs what could not be closed.
func (in *infra) Close(cmdCtx *commandContext) {
	if err := in.close(); err != nil {
		cmdCtx.Logger.Warn("close infrastructure failed", "error", err)
	}
}

func (in *infra) close() error {
	var errs []error
	if in.DB != nil {
		if err := in.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if in.Redis != nil {
		if err := in.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

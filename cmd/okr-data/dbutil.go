package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratix-hq/stratix-sdk/pkg/composables"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
)

// connectDB opens the pool and binds it to the returned context, the way
// every repository expects to find it.
func connectDB(ctx context.Context) (context.Context, *pgxpool.Pool, error) {
	conf := configuration.Use()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return ctx, nil, withCode(exitDB, fmt.Errorf("connect database: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return ctx, nil, withCode(exitDB, fmt.Errorf("ping database: %w", err))
	}
	return composables.WithPool(ctx, pool), pool, nil
}

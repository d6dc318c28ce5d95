package services

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
)

func retryTestOptions(attempts int) configuration.ImportOptions {
	return configuration.ImportOptions{
		TxTimeout:   time.Second,
		TxAttempts:  attempts,
		TxBackoff:   time.Millisecond,
		TxIsolation: "read committed",
	}
}

func discardedEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestRetryingTxRunner_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	exec := func(ctx context.Context, _ pgx.TxOptions, fn func(context.Context) error) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("attempt context has no deadline")
		}
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return fn(ctx)
	}

	run := newRetryingTxRunner(retryTestOptions(3), discardedEntry(), exec)
	require.NoError(t, run(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, 2, calls)
}

func TestRetryingTxRunner_NonTransientReturnsAtOnce(t *testing.T) {
	t.Parallel()

	uniqueViolation := &pgconn.PgError{Code: "23505"}
	calls := 0
	exec := func(context.Context, pgx.TxOptions, func(context.Context) error) error {
		calls++
		return uniqueViolation
	}

	run := newRetryingTxRunner(retryTestOptions(3), discardedEntry(), exec)
	err := run(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, uniqueViolation)
	assert.Equal(t, 1, calls)
}

func TestRetryingTxRunner_ExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()

	calls := 0
	exec := func(context.Context, pgx.TxOptions, func(context.Context) error) error {
		calls++
		return fmt.Errorf("attempt %d: %w", calls, &pgconn.PgError{Code: "40P01"})
	}

	opts := retryTestOptions(3)
	run := newRetryingTxRunner(opts, discardedEntry(), exec)

	started := time.Now()
	err := run(context.Background(), func(context.Context) error { return nil })
	elapsed := time.Since(started)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
	// two backoff sleeps, doubled after the first: 1ms + 2ms
	assert.GreaterOrEqual(t, elapsed, 3*opts.TxBackoff)
}

func TestRetryingTxRunner_CancellationStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	exec := func(context.Context, pgx.TxOptions, func(context.Context) error) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	}

	run := newRetryingTxRunner(retryTestOptions(3), discardedEntry(), exec)
	err := run(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/stratix-hq/stratix-sdk/pkg/composables"
	"github.com/stratix-hq/stratix-sdk/pkg/configuration"
)

// TxRunner executes fn inside a database transaction. The production runner
// retries transient failures; tests swap in a plain one.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// txExec runs fn inside one transaction attempt. Production wires
// composables.InTx; tests substitute controlled failures.
type txExec func(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error

// NewRetryingTxRunner builds a TxRunner that wraps composables.InTx with a
// per-attempt timeout, a bounded retry loop for transient errors, and
// exponential backoff between attempts. Non-transient errors and context
// cancellation return immediately.
func NewRetryingTxRunner(opts configuration.ImportOptions, log *logrus.Entry) TxRunner {
	return newRetryingTxRunner(opts, log, composables.InTx)
}

func newRetryingTxRunner(opts configuration.ImportOptions, log *logrus.Entry, exec txExec) TxRunner {
	txOpts := pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(opts.TxIsolation)}

	return func(ctx context.Context, fn func(context.Context) error) error {
		var lastErr error
		backoff := opts.TxBackoff
		for attempt := 1; attempt <= opts.TxAttempts; attempt++ {
			attemptCtx, cancel := context.WithTimeout(ctx, opts.TxTimeout)
			err := exec(attemptCtx, txOpts, fn)
			cancel()
			if err == nil {
				return nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !IsTransient(err) {
				return err
			}
			txRetries.Inc()
			if log != nil {
				log.WithError(err).WithField("attempt", attempt).Warn("transient tx failure, retrying")
			}
			if attempt == opts.TxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		return lastErr
	}
}

// IsTransient reports whether the error is worth retrying: serialization
// failures, deadlocks, connection-class Postgres errors, network errors and
// per-attempt timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// The per-attempt timeout shows up as a deadline exceeded from the driver.
	return errors.Is(err, context.DeadlineExceeded)
}

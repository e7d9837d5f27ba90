package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const txRetryMaxElapsed = 10 * time.Second

func newTxBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = txRetryMaxElapsed

	return bo
}

// RunInTx runs fn in a transaction, committing when fn returns nil and rolling back on any
// error or panic. Lock contention inside fn reruns the whole of fn, so fn must not keep state
// between attempts. A failed commit is never rerun: the server may have applied it.
func (d *Database) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		err := d.runTxOnce(ctx, fn)
		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}

		if isRetryable(err) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("retrying transaction")

			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(newTxBackoff(), ctx))
}

func (d *Database) runTxOnce(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()

			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err = tx.Commit(); err != nil {
		return backoff.Permanent(fmt.Errorf("error committing transaction: %w", err))
	}

	return nil
}

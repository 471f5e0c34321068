package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/data/pgxutil"
)

// Advisory lock namespace for cleanup operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for crawld cleanup operations.
const (
	advisoryLockCleanerMajor           = 1000
	advisoryLockCleanerDeleteCompleted = 1 // minor key for DeleteOldCompleted
)

// DeleteOldCompleted deletes one bounded batch of completed jobs whose
// finished_at is strictly older than MaxAge. Uses an advisory lock so
// concurrent cleaner instances don't conflict. Returns the number of jobs
// deleted; callers loop over batches until a short batch comes back.
func (r *JobRepo) DeleteOldCompleted(ctx context.Context, params core.DeleteOldCompletedParams) (int64, error) {
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockCleanerMajor, advisoryLockCleanerDeleteCompleted).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-params.MaxAge).UTC()

			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE state = 'completed'
					  AND finished_at IS NOT NULL
					  AND finished_at < $1
					ORDER BY finished_at
					LIMIT $2
				)
			`, cutoffTime, params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old completed jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

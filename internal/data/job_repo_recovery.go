package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/crawld/internal/domain/model"
)

// ListActive returns all jobs currently in the active state, oldest first.
func (r *JobRepo) ListActive(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'active'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan active job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate active jobs: %w", rowsErr)
	}
	return jobs, nil
}

// ForceRelease clears an active job's lock regardless of which executor holds
// it and marks the job failed with the given result. This deliberately
// bypasses the holder-only check; it is the one privileged operation in the
// store and must only be invoked while dispatch is paused and the old
// executor is presumed dead.
func (r *JobRepo) ForceRelease(ctx context.Context, id string, result []byte) error {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET state = 'failed',
		    result = $2,
		    progress = NULL,
		    lock_token = NULL,
		    finished_at = $3,
		    updated_at = $3
		WHERE id = $1 AND state = 'active'
	`, id, result, now)
	if err != nil {
		return fmt.Errorf("force release job %s: %w", id, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("force release rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Remove deletes a job record outright.
func (r *JobRepo) Remove(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CountActive returns the number of active jobs. Used by the health surface.
func (r *JobRepo) CountActive(ctx context.Context) (int, error) {
	return r.countByState(ctx, model.JobStateActive)
}

// CountWaiting returns the number of waiting jobs. Used by the health surface.
func (r *JobRepo) CountWaiting(ctx context.Context) (int, error) {
	return r.countByState(ctx, model.JobStateWaiting)
}

func (r *JobRepo) countByState(ctx context.Context, state model.JobState) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE state = $1`, state).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count %s jobs: %w", state, err)
	}
	return count, nil
}

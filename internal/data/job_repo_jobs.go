package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/data/pgxutil"
	"github.com/target/crawld/internal/domain/model"
	apperrors "github.com/target/crawld/internal/errors"
)

// jobAddedChannel is the LISTEN/NOTIFY channel signalling new waiting jobs.
const jobAddedChannel = "crawld_job_added"

// SQL used by AcquireNext to atomically lock the oldest waiting job.
const acquireNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE state = 'waiting'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    state = 'active',
    lock_token = $1,
    updated_at = $2
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.payload, j.state, j.lock_token, j.progress, j.result, j.finished_at, j.created_at, j.updated_at`

// Enqueue inserts a new waiting job with a freshly assigned id and notifies
// listening workers.
func (r *JobRepo) Enqueue(ctx context.Context, payload model.CrawlPayload) (*model.Job, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return r.insert(ctx, uuid.NewString(), payload)
}

// Requeue inserts a fresh waiting job reusing the given external id. The
// caller must have removed the old record first; the primary key makes an
// accidental double-requeue fail loudly instead of silently duplicating work.
func (r *JobRepo) Requeue(ctx context.Context, params core.RequeueParams) (*model.Job, error) {
	if params.ID == "" {
		return nil, errors.New("job id is required")
	}
	if err := params.Payload.Validate(); err != nil {
		return nil, err
	}
	return r.insert(ctx, params.ID, params.Payload)
}

func (r *JobRepo) insert(ctx context.Context, id string, payload model.CrawlPayload) (*model.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := r.timeProvider.Now().UTC()

	var job *model.Job
	txErr := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `
				INSERT INTO jobs (id, payload, state, created_at, updated_at)
				VALUES ($1, $2, 'waiting', $3, $3)
				RETURNING `+jobColumns, id, raw, now)

			j, scanErr := scanJobFromRow(row)
			if scanErr != nil {
				return fmt.Errorf("collect job: %w", scanErr)
			}

			if _, notifyErr := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, jobAddedChannel, j.ID); notifyErr != nil {
				return fmt.Errorf("send job notification: %w", notifyErr)
			}

			job = j
			return nil
		},
	})
	if txErr != nil {
		return nil, apperrors.MapDBError(txErr)
	}
	return job, nil
}

// AcquireNext atomically locks the oldest waiting job and moves it to active.
// Returns model.ErrNoJobsAvailable when nothing is waiting.
func (r *JobRepo) AcquireNext(ctx context.Context) (*model.Job, error) {
	token := uuid.NewString()
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, acquireNextSQL, token, now)
	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("acquire job: %w", err)
	}
	return job, nil
}

// AcquireByID attempts to lock one specific waiting job. The conditional
// UPDATE guarantees that of any number of concurrent attempts exactly one
// succeeds; the rest observe zero rows and get model.ErrNoJobsAvailable.
func (r *JobRepo) AcquireByID(ctx context.Context, id string) (*model.Job, error) {
	token := uuid.NewString()
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		UPDATE jobs
		SET state = 'active',
		    lock_token = $2,
		    updated_at = $3
		WHERE id = $1 AND state = 'waiting'
		RETURNING `+jobColumns, id, token, now)

	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("acquire job %s: %w", id, err)
	}
	return job, nil
}

// UpdateProgress overwrites the progress field of an active job. Only the
// lock holder may write; a stale token or non-active job is a no-op.
func (r *JobRepo) UpdateProgress(ctx context.Context, params core.ProgressParams) (bool, error) {
	raw, err := json.Marshal(params.Progress)
	if err != nil {
		return false, fmt.Errorf("marshal progress: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress = $3,
		    updated_at = $4
		WHERE id = $1 AND state = 'active' AND lock_token = $2
	`, params.ID, params.LockToken, raw, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("progress rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete transitions an active job to completed, writing the final result
// exactly once. Holder-only; returns false if the job is not active under the
// given token, which also makes a repeated terminal transition a no-op.
func (r *JobRepo) Complete(ctx context.Context, params core.TerminalParams) (bool, error) {
	return r.finish(ctx, model.JobStateCompleted, params)
}

// Fail transitions an active job to failed with an error descriptor as its
// result. Same holder-only and write-once semantics as Complete.
func (r *JobRepo) Fail(ctx context.Context, params core.TerminalParams) (bool, error) {
	return r.finish(ctx, model.JobStateFailed, params)
}

func (r *JobRepo) finish(ctx context.Context, state model.JobState, params core.TerminalParams) (bool, error) {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET state = $3,
		    result = $4,
		    progress = NULL,
		    lock_token = NULL,
		    finished_at = $5,
		    updated_at = $5
		WHERE id = $1 AND state = 'active' AND lock_token = $2
	`, params.ID, params.LockToken, state, params.Result, now)
	if err != nil {
		return false, fmt.Errorf("%s job: %w", state, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", state, err)
	}
	return rowsAffected > 0, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1
	`, id)

	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Stats returns job counts by lifecycle state.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE state = 'waiting')   AS waiting,
    count(*) FILTER (WHERE state = 'active')    AS active,
    count(*) FILTER (WHERE state = 'completed') AS completed,
    count(*) FILTER (WHERE state = 'failed')    AS failed
  FROM jobs
  `).Scan(
		&s.Waiting,
		&s.Active,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating new jobs
// are available.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{jobAddedChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", jobAddedChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, progress, result []byte
	lockToken                 sql.NullString
	finishedAt                sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&d.payload,
		&job.State,
		&d.lockToken,
		&d.progress,
		&d.result,
		&d.finishedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	if err := json.Unmarshal(d.payload, &job.Payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(d.progress) > 0 {
		var p model.JobProgress
		if err := json.Unmarshal(d.progress, &p); err != nil {
			return fmt.Errorf("unmarshal progress: %w", err)
		}
		job.Progress = &p
	}
	if len(d.result) > 0 {
		job.Result = append(json.RawMessage(nil), d.result...)
	}
	job.LockToken = cloneNullableString(d.lockToken)
	job.FinishedAt = cloneNullableTime(d.finishedAt)
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	if err := data.apply(job); err != nil {
		return nil, err
	}
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

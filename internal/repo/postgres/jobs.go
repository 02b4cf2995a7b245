package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *JobsRepo) Enqueue(ctx context.Context, j jobs.Job) error {
	return r.observe("jobs.enqueue", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO notification_jobs (id, type, payload, status, attempts, max_tries, run_at, last_error, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			j.ID, j.Type, j.Payload, j.Status, j.Attempts, j.MaxTries, j.RunAt, j.LastError, j.CreatedAt, j.UpdatedAt,
		)
		return err
	})
}

// ClaimNext grabs the oldest runnable pending job and flips it to
// processing in one statement. SKIP LOCKED keeps concurrent workers off
// each other's rows.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (jobs.Job, error) {
	var j jobs.Job

	err := r.observe("jobs.claim_next", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE notification_jobs
			SET status = 'processing',
					attempts = attempts + 1,
					locked_by = $1,
					updated_at = NOW()
			WHERE id = (
				SELECT id FROM notification_jobs
				WHERE status = 'pending' AND run_at <= NOW()
				ORDER BY run_at ASC, id ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING id, type, payload, status, attempts, max_tries, run_at, last_error, created_at, updated_at
		`, workerID).Scan(
			&j.ID,
			&j.Type,
			&j.Payload,
			&j.Status,
			&j.Attempts,
			&j.MaxTries,
			&j.RunAt,
			&j.LastError,
			&j.CreatedAt,
			&j.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.Job{}, jobs.ErrJobNotFound
		}

		return jobs.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.observe("jobs.mark_done", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_jobs
			SET status = 'succeeded', last_error = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
		return err
	})
}

// MarkRetry puts a failed attempt back to pending with a later run_at.
func (r *JobsRepo) MarkRetry(ctx context.Context, id string, runAt time.Time, reason string) error {
	return r.observe("jobs.mark_retry", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_jobs
			SET status = 'pending', run_at = $2, last_error = $3, locked_by = NULL, updated_at = NOW()
			WHERE id = $1
		`, id, runAt, reason)
		return err
	})
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.observe("jobs.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_jobs
			SET status = 'failed', last_error = $2, updated_at = NOW()
			WHERE id = $1
		`, id, reason)
		return err
	})
}

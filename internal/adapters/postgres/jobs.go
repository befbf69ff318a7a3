package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"ferret/internal/domain"
)

const jobColumns = `id, target, owner_id, status, progress, total_steps,
	current_step, advisory, error_message, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (domain.ScanJob, error) {
	var j domain.ScanJob
	err := row.Scan(&j.ID, &j.Target, &j.OwnerID, &j.Status, &j.Progress,
		&j.TotalSteps, &j.CurrentStep, &j.Advisory, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	return j, err
}

func (db *DB) CreateJob(ctx context.Context, job domain.ScanJob) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scan_jobs (id, target, owner_id, status, progress, total_steps, current_step, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.Target, job.OwnerID, job.Status, job.Progress, job.TotalSteps,
		job.CurrentStep, job.CreatedAt, job.UpdatedAt)
	return err
}

func (db *DB) GetJob(ctx context.Context, id string) (domain.ScanJob, bool, error) {
	j, err := scanJob(db.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scan_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScanJob{}, false, nil
	}
	if err != nil {
		return domain.ScanJob{}, false, err
	}
	return j, true, nil
}

func (db *DB) ListJobs(ctx context.Context, ownerID string) ([]domain.ScanJob, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scan_jobs WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScanJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateProgress advances a non-terminal job. The status guard makes
// terminal records immutable at the SQL level, and the GREATEST keeps
// progress non-decreasing even under a late write.
func (db *DB) UpdateProgress(ctx context.Context, id string, status domain.JobStatus, progress int, stepLabel string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = $2, progress = GREATEST(progress, $3), current_step = $4, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, status, progress, stepLabel)
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, id string, advisory string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = 'completed', progress = 100, current_step = 'Completed',
		    advisory = $2, updated_at = now(), completed_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, advisory)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, id string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, reason)
	return err
}

package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"ferret/internal/domain"
)

func (db *DB) SaveResults(ctx context.Context, jobID string, results []domain.NormalizedResult) error {
	return db.insertResults(ctx, "scan_results", jobID, results)
}

func (db *DB) SaveFindings(ctx context.Context, jobID string, findings []domain.NormalizedResult) error {
	return db.insertResults(ctx, "scan_findings", jobID, findings)
}

// insertResults batches the rows in one transaction. ON CONFLICT DO NOTHING
// keeps the first-seen record for a (job, kind, value), matching the
// normalizer's dedup rule.
func (db *DB) insertResults(ctx context.Context, table, jobID string, results []domain.NormalizedResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	for _, r := range results {
		meta, merr := json.Marshal(r.Metadata)
		if merr != nil {
			meta = []byte("{}")
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO `+table+` (job_id, kind, value, metadata, source, discovered_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (job_id, kind, value) DO NOTHING
		`, jobID, r.Kind, r.Value, meta, r.Source, r.DiscoveredAt); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) GetResults(ctx context.Context, jobID string) ([]domain.NormalizedResult, error) {
	return db.queryResults(ctx, "scan_results", jobID)
}

func (db *DB) GetFindings(ctx context.Context, jobID string) ([]domain.NormalizedResult, error) {
	return db.queryResults(ctx, "scan_findings", jobID)
}

func (db *DB) queryResults(ctx context.Context, table, jobID string) ([]domain.NormalizedResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT kind, value, metadata, source, discovered_at
		FROM `+table+` WHERE job_id = $1 ORDER BY id
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.NormalizedResult
	for rows.Next() {
		var r domain.NormalizedResult
		var meta []byte
		if err := rows.Scan(&r.Kind, &r.Value, &meta, &r.Source, &r.DiscoveredAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Metadata)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

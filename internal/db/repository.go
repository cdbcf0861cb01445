// Package db keeps a MySQL history of finished relay runs. Only run
// metadata is stored; manifest rows never leave memory.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"manifest-relay/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS manifest_runs (
	id            CHAR(36)     NOT NULL PRIMARY KEY,
	file_name     VARCHAR(255) NOT NULL,
	next_day      BOOLEAN      NOT NULL,
	status        VARCHAR(16)  NOT NULL,
	sent          INT          NOT NULL,
	total         INT          NOT NULL,
	percent       INT          NOT NULL,
	error_message TEXT         NULL,
	created_at    DATETIME(3)  NOT NULL,
	updated_at    DATETIME(3)  NOT NULL,
	INDEX idx_manifest_runs_created (created_at)
)`

type Repository interface {
	Migrate(ctx context.Context) error
	RecordRun(ctx context.Context, run model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create manifest_runs: %w", err)
	}
	return nil
}

func (r *repository) RecordRun(ctx context.Context, run model.Run) error {
	query := `INSERT INTO manifest_runs
			  (id, file_name, next_day, status, sent, total, percent, error_message, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE status = VALUES(status), sent = VALUES(sent), total = VALUES(total),
			  percent = VALUES(percent), error_message = VALUES(error_message), updated_at = VALUES(updated_at)`

	var errorMessage *string
	if run.ErrorMessage != "" {
		errorMessage = &run.ErrorMessage
	}

	_, err := r.db.ExecContext(ctx, query, run.ID, run.FileName, run.NextDay, run.Status,
		run.Sent, run.Total, run.Percent, errorMessage, run.CreatedAt, run.UpdatedAt)
	return err
}

func (r *repository) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	query := `SELECT id, file_name, next_day, status, sent, total, percent, error_message, created_at, updated_at
			  FROM manifest_runs ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var errorMessage sql.NullString
		if err := rows.Scan(
			&run.ID, &run.FileName, &run.NextDay, &run.Status, &run.Sent, &run.Total,
			&run.Percent, &errorMessage, &run.CreatedAt, &run.UpdatedAt,
		); err != nil {
			return nil, err
		}
		run.ErrorMessage = errorMessage.String
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

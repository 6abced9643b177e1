package linkstore

import (
	"context"
	"fmt"
)

// RecordSyncRuns appends one audit row per sub-task of a scheduled sync.
func (s *Store) RecordSyncRuns(ctx context.Context, runs []SyncRun) error {
	ctx = ensureContext(ctx)
	if len(runs) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_runs (run_id, task, success, count, error, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		createdAt := s.stamp()
		for _, run := range runs {
			if _, err := stmt.ExecContext(ctx, run.RunID, run.Task, run.Success, run.Count, run.Error, run.DurationMS, createdAt); err != nil {
				return fmt.Errorf("record sync run %s/%s: %w", run.RunID, run.Task, err)
			}
		}
		return tx.Commit()
	})
}

// ListSyncRuns returns the most recent audit rows, newest first.
func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, run_id, task, success, count, error, duration_ms, created_at
		FROM sync_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var (
			run       SyncRun
			createdAt int64
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.Task, &run.Success, &run.Count, &run.Error, &run.DurationMS, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt = fromMillis(createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

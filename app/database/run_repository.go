package database

import (
	"fmt"
)

var _ RunRepository = (*SQLiteRunRepository)(nil)

type SQLiteRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

func (r *SQLiteRunRepository) InsertRun(run Run) error {
	return insertRun(r.db, run)
}

func insertRun(q execer, run Run) error {
	_, err := q.Exec(`
		INSERT INTO runs (id, mode, started_at, finished_at, feed_count, items_count, failed_count, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Mode, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.FeedCount, run.ItemsCount, run.FailedCount, run.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRunRepository) ListRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, mode, started_at, finished_at, feed_count, items_count, failed_count, output_path
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run                   Run
			startedAt, finishedAt string
		)
		if err := rows.Scan(&run.ID, &run.Mode, &startedAt, &finishedAt,
			&run.FeedCount, &run.ItemsCount, &run.FailedCount, &run.OutputPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

package database

import (
	"fmt"
)

// History records aggregation runs together with per-feed results.
type History struct {
	db       *DB
	Runs     RunRepository
	Statuses FeedStatusRepository
}

func NewHistory(db *DB) *History {
	return &History{
		db:       db,
		Runs:     NewRunRepository(db),
		Statuses: NewFeedStatusRepository(db),
	}
}

// Record stores the feed statuses and the run in one transaction.
func (h *History) Record(run Run, statuses []FeedStatus) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, status := range statuses {
		if err := upsertFeedStatus(tx, status); err != nil {
			return fmt.Errorf("failed to record feed %s: %w", status.URL, err)
		}
	}

	if err := insertRun(tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}

	return nil
}

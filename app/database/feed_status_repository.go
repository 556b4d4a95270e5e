package database

import (
	"database/sql"
	"fmt"
)

var _ FeedStatusRepository = (*SQLiteFeedStatusRepository)(nil)

type SQLiteFeedStatusRepository struct {
	db *DB
}

func NewFeedStatusRepository(db *DB) *SQLiteFeedStatusRepository {
	return &SQLiteFeedStatusRepository{db: db}
}

// UpsertFeedStatus records the latest fetch of a feed. A failed fetch keeps
// the previous title and success time.
func (r *SQLiteFeedStatusRepository) UpsertFeedStatus(status FeedStatus) error {
	return upsertFeedStatus(r.db, status)
}

func upsertFeedStatus(q execer, status FeedStatus) error {
	var lastSuccess sql.NullString
	if status.LastSuccessAt != nil {
		lastSuccess = sql.NullString{String: formatTime(*status.LastSuccessAt), Valid: true}
	}

	_, err := q.Exec(`
		INSERT INTO feed_status (url, title, last_fetched_at, last_success_at, last_error, last_item_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE feed_status.title END,
			last_fetched_at = excluded.last_fetched_at,
			last_success_at = COALESCE(excluded.last_success_at, feed_status.last_success_at),
			last_error = excluded.last_error,
			last_item_count = excluded.last_item_count
	`, status.URL, status.Title, formatTime(status.LastFetchedAt), lastSuccess, status.LastError, status.LastItemCount)
	if err != nil {
		return fmt.Errorf("failed to upsert feed status: %w", err)
	}

	return nil
}

func (r *SQLiteFeedStatusRepository) ListFeedStatuses() ([]FeedStatus, error) {
	rows, err := r.db.Query(`
		SELECT url, title, last_fetched_at, last_success_at, last_error, last_item_count
		FROM feed_status
		ORDER BY url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed statuses: %w", err)
	}
	defer rows.Close()

	statuses := []FeedStatus{}
	for rows.Next() {
		var (
			status      FeedStatus
			lastFetched string
			lastSuccess sql.NullString
		)
		if err := rows.Scan(&status.URL, &status.Title, &lastFetched, &lastSuccess,
			&status.LastError, &status.LastItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan feed status: %w", err)
		}

		if status.LastFetchedAt, err = parseTime(lastFetched); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			t, err := parseTime(lastSuccess.String)
			if err != nil {
				return nil, err
			}
			status.LastSuccessAt = &t
		}

		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feed statuses: %w", err)
	}

	return statuses, nil
}

package database

import (
	"time"
)

// Run is one aggregation pass.
type Run struct {
	ID          string
	Mode        string
	StartedAt   time.Time
	FinishedAt  time.Time
	FeedCount   int
	ItemsCount  int
	FailedCount int
	OutputPath  string
}

// FeedStatus is the latest fetch result of a feed.
type FeedStatus struct {
	URL           string
	Title         string
	LastFetchedAt time.Time
	LastSuccessAt *time.Time // nil until the feed was fetched successfully once
	LastError     string
	LastItemCount int
}

type RunRepository interface {
	InsertRun(run Run) error
	ListRuns(limit int) ([]Run, error)
}

type FeedStatusRepository interface {
	UpsertFeedStatus(status FeedStatus) error
	ListFeedStatuses() ([]FeedStatus, error)
}

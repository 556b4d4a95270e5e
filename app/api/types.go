package api

import (
	"context"

	"github.com/lysyi3m/rss-digest/app/aggregator"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/snapshot"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

// AllowedHours are the recency windows offered by the UI.
var AllowedHours = []int{1, 6, 24, 72, 168}

type RunnerInterface interface {
	Run(ctx context.Context, descriptors []feed.Descriptor, progress tasks.ProgressFunc) *aggregator.Result
}

var _ RunnerInterface = (*aggregator.Aggregator)(nil)

type ItemsResponse struct {
	Hours       int                      `json:"hours"`
	Status      string                   `json:"status"`
	FetchedAt   string                   `json:"fetched_at,omitempty"`
	FeedCount   int                      `json:"feed_count"`
	Items       []snapshot.Item          `json:"items"`
	FailedFeeds []aggregator.FeedFailure `json:"failed_feeds"`
}

type StatusResponse struct {
	State     string `json:"state"`
	Message   string `json:"message"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Source    string `json:"source,omitempty"`
}

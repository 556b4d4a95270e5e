package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-digest/app/feed"
)

// FeedFetcher retrieves and parses a single feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Fetched, error)
}

// Outcome is the result of fetching one descriptor.
type Outcome struct {
	Descriptor feed.Descriptor
	Source     string
	Items      []feed.Item
	Attempts   int
	Err        error
}

type FetchFeedTask struct {
	Task
	Descriptor feed.Descriptor
	fetcher    FeedFetcher
	Outcome    Outcome
}

func NewFetchFeedTask(descriptor feed.Descriptor, fetcher FeedFetcher) *FetchFeedTask {
	return &FetchFeedTask{
		Task:       NewTask(TaskTypeFetchFeed, descriptor.URL),
		Descriptor: descriptor,
		fetcher:    fetcher,
		Outcome:    Outcome{Descriptor: descriptor},
	}
}

// Execute fetches the feed and normalizes its items. The error is also
// recorded in Outcome.
func (t *FetchFeedTask) Execute(ctx context.Context) error {
	slog.Info("Fetching feed", "url", t.Descriptor.URL)

	fetched, err := t.fetcher.Fetch(ctx, t.Descriptor.URL)
	if err != nil {
		t.Outcome.Err = err
		slog.Warn("Failed to fetch feed",
			"url", t.Descriptor.URL,
			"duration", t.GetDuration(),
			"error", err)
		return err
	}

	source := feed.SourceTitle(fetched.Metadata, t.Descriptor)

	t.Outcome.Source = source
	t.Outcome.Attempts = fetched.Attempts
	t.Outcome.Items = feed.Normalize(fetched.Items, source, t.Descriptor.URL)

	if len(t.Outcome.Items) == 0 {
		slog.Info("No items in feed", "url", t.Descriptor.URL)
	}

	slog.Info("Fetched feed",
		"type", string(t.Type),
		"url", t.Descriptor.URL,
		"source", source,
		"items", len(t.Outcome.Items),
		"attempts", fetched.Attempts,
		"duration", t.GetDuration())

	return nil
}

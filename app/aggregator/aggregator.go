package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

// Result is the outcome of one aggregation run. It is not modified after Run
// returns; re-filtering builds new slices from Collected.
type Result struct {
	RunID       string
	Items       []feed.Item // newest first, capped
	Collected   []feed.Item // every fetched item that passed the rules, in descriptor order
	FetchedAt   time.Time
	FeedCount   int
	ItemCount   int // qualifying items before the cap
	FailedFeeds []FeedFailure
}

type FeedFailure struct {
	URL      string
	Title    string
	Attempts int
	Error    string
}

type Options struct {
	Mode        string
	Window      time.Duration
	MissingDate feed.MissingDatePolicy
	Limit       int
	OutputPath  string // recorded with the run
}

// History persists run records. It is optional.
type History interface {
	Record(run database.Run, statuses []database.FeedStatus) error
}

type Aggregator struct {
	coordinator *tasks.Coordinator
	filterer    *feed.Filterer
	history     History
	opts        Options
	now         func() time.Time
}

func New(coordinator *tasks.Coordinator, filterer *feed.Filterer, history History, opts Options) *Aggregator {
	if filterer == nil {
		filterer = feed.NewFilterer(nil)
	}
	return &Aggregator{
		coordinator: coordinator,
		filterer:    filterer,
		history:     history,
		opts:        opts,
		now:         time.Now,
	}
}

// Run fetches every descriptor and builds the digest. Feed failures are
// reported in the result and never fail the run.
func (a *Aggregator) Run(ctx context.Context, descriptors []feed.Descriptor, progress tasks.ProgressFunc) *Result {
	startedAt := a.now().UTC()

	slog.Info("Aggregation started", "mode", a.opts.Mode, "feeds", len(descriptors))

	outcomes := a.coordinator.Run(ctx, descriptors, progress)

	fetchedAt := a.now().UTC()
	result := &Result{
		RunID:       uuid.NewString(),
		FetchedAt:   fetchedAt,
		FeedCount:   len(descriptors),
		FailedFeeds: []FeedFailure{},
	}

	var collected []feed.Item
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.FailedFeeds = append(result.FailedFeeds, failure(outcome))
			continue
		}
		collected = append(collected, outcome.Items...)
	}

	kept, filtered := a.filterer.Run(collected)
	if filtered > 0 {
		slog.Info("Items filtered by rules", "filtered", filtered, "kept", len(kept))
	}
	result.Collected = kept

	qualifying := feed.Digest(kept, feed.DigestOptions{
		WindowStart: fetchedAt.Add(-a.opts.Window),
		Now:         fetchedAt,
		MissingDate: a.opts.MissingDate,
	})
	result.ItemCount = len(qualifying)

	if a.opts.Limit > 0 && len(qualifying) > a.opts.Limit {
		qualifying = qualifying[:a.opts.Limit]
	}
	result.Items = qualifying

	slog.Info("Aggregation completed",
		"mode", a.opts.Mode,
		"feeds", result.FeedCount,
		"failed", len(result.FailedFeeds),
		"items", result.ItemCount,
		"duration", fetchedAt.Sub(startedAt))

	a.record(result, outcomes, startedAt)

	return result
}

// View re-filters a previous result for another window without fetching.
func View(result *Result, window time.Duration, now time.Time, policy feed.MissingDatePolicy) []feed.Item {
	if result == nil {
		return []feed.Item{}
	}
	return feed.Digest(result.Collected, feed.DigestOptions{
		WindowStart: now.Add(-window),
		Now:         result.FetchedAt,
		MissingDate: policy,
	})
}

func (a *Aggregator) record(result *Result, outcomes []tasks.Outcome, startedAt time.Time) {
	if a.history == nil {
		return
	}

	run := database.Run{
		ID:          result.RunID,
		Mode:        a.opts.Mode,
		StartedAt:   startedAt,
		FinishedAt:  result.FetchedAt,
		FeedCount:   result.FeedCount,
		ItemsCount:  result.ItemCount,
		FailedCount: len(result.FailedFeeds),
		OutputPath:  a.opts.OutputPath,
	}

	statuses := make([]database.FeedStatus, 0, len(outcomes))
	for _, outcome := range outcomes {
		status := database.FeedStatus{
			URL:           outcome.Descriptor.URL,
			Title:         outcome.Source,
			LastFetchedAt: result.FetchedAt,
			LastItemCount: len(outcome.Items),
		}
		if outcome.Err != nil {
			status.LastError = outcome.Err.Error()
		} else {
			fetchedAt := result.FetchedAt
			status.LastSuccessAt = &fetchedAt
		}
		statuses = append(statuses, status)
	}

	if err := a.history.Record(run, statuses); err != nil {
		slog.Warn("Failed to record run history", "run_id", run.ID, "error", err)
	}
}

func failure(outcome tasks.Outcome) FeedFailure {
	f := FeedFailure{
		URL:   outcome.Descriptor.URL,
		Title: outcome.Descriptor.Title,
		Error: outcome.Err.Error(),
	}

	var fetchErr *feed.FetchError
	if errors.As(outcome.Err, &fetchErr) {
		f.Attempts = fetchErr.Attempts
	}

	return f
}

package tasks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-digest/app/feed"
)

const DefaultConcurrency = 6

// ProgressFunc is called after each descriptor completes. Calls are serialized.
type ProgressFunc func(done, total int, outcome Outcome)

type Coordinator struct {
	fetcher FeedFetcher
	limit   int
}

func NewCoordinator(fetcher FeedFetcher, limit int) *Coordinator {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Coordinator{
		fetcher: fetcher,
		limit:   limit,
	}
}

// Run fetches every descriptor with at most limit fetches in flight and
// returns once all of them finished. Outcomes are in descriptor order;
// a failed feed is reported in its Outcome and never affects the others.
func (c *Coordinator) Run(ctx context.Context, descriptors []feed.Descriptor, progress ProgressFunc) []Outcome {
	outcomes := make([]Outcome, len(descriptors))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(c.limit)

	for i, descriptor := range descriptors {
		g.Go(func() error {
			task := NewFetchFeedTask(descriptor, c.fetcher)
			task.Start()
			_ = task.Execute(ctx)
			outcomes[i] = task.Outcome

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(descriptors), task.Outcome)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

package feed

import (
	"sort"
	"time"
)

// MissingDatePolicy decides how undated items are treated by the recency window.
type MissingDatePolicy int

const (
	// MissingDateExclude drops undated items.
	MissingDateExclude MissingDatePolicy = iota
	// MissingDateAsNow treats undated items as published at DigestOptions.Now.
	MissingDateAsNow
)

type DigestOptions struct {
	WindowStart time.Time
	Now         time.Time
	MissingDate MissingDatePolicy
	Limit       int // 0 means no cap
}

// Digest keeps items inside the window, dedupes them, orders them newest
// first and applies the cap. The input slice is not modified. Windowing runs
// first so an out-of-range copy never hides an in-range one.
func Digest(items []Item, opts DigestOptions) []Item {
	result := FilterWindow(items, opts)
	result = Dedupe(result)
	SortNewestFirst(result, opts)

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

// DedupeKey identifies an item across feeds.
func DedupeKey(item Item) string {
	if item.HasLink() {
		return "link:" + item.Link
	}
	if item.GUID != "" {
		return "guid:" + item.GUID
	}

	date := ""
	if item.PublishedAt != nil {
		date = item.PublishedAt.UTC().Format(time.RFC3339)
	}
	return "title:" + item.Title + "|" + date
}

// Dedupe keeps the first occurrence of every key.
func Dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	result := make([]Item, 0, len(items))

	for _, item := range items {
		key := DedupeKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}

	return result
}

func FilterWindow(items []Item, opts DigestOptions) []Item {
	result := make([]Item, 0, len(items))
	for _, item := range items {
		at, ok := effectiveTime(item, opts)
		if !ok || at.Before(opts.WindowStart) {
			continue
		}
		result = append(result, item)
	}
	return result
}

// SortNewestFirst orders items by descending effective time. Ties keep
// their relative order.
func SortNewestFirst(items []Item, opts DigestOptions) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, _ := effectiveTime(items[i], opts)
		tj, _ := effectiveTime(items[j], opts)
		return ti.After(tj)
	})
}

func effectiveTime(item Item, opts DigestOptions) (time.Time, bool) {
	if item.PublishedAt != nil {
		return *item.PublishedAt, true
	}
	if opts.MissingDate == MissingDateAsNow {
		return opts.Now, true
	}
	return time.Time{}, false
}

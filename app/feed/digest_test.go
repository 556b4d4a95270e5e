package feed

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

var digestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func hoursAgo(h int) *time.Time {
	t := digestNow.Add(-time.Duration(h) * time.Hour)
	return &t
}

func titles(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestDedupeKey(t *testing.T) {
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		item     Item
		expected string
	}{
		{"link wins", Item{Link: "http://x/1", GUID: "g", Title: "T"}, "link:http://x/1"},
		{"placeholder link uses guid", Item{Link: PlaceholderLink, GUID: "g", Title: "T"}, "guid:g"},
		{"title and date", Item{Link: PlaceholderLink, Title: "T", PublishedAt: &published}, "title:T|2025-01-02T03:04:05Z"},
		{"title without date", Item{Link: PlaceholderLink, Title: "T"}, "title:T|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupeKey(tt.item); got != tt.expected {
				t.Errorf("Expected key '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestDedupe_FirstSeenWins(t *testing.T) {
	items := []Item{
		{Title: "from A", Link: "http://x/1", Source: "A"},
		{Title: "from B", Link: "http://x/1", Source: "B"},
		{Title: "other", Link: "http://x/2"},
	}

	result := Dedupe(items)
	if len(result) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(result))
	}
	if result[0].Source != "A" {
		t.Errorf("Expected first-seen item from A, got source '%s'", result[0].Source)
	}
}

func TestDigest_WindowBoundary(t *testing.T) {
	windowStart := digestNow.Add(-24 * time.Hour)
	items := []Item{
		{Title: "25h", Link: "http://x/25", PublishedAt: hoursAgo(25)},
		{Title: "23h", Link: "http://x/23", PublishedAt: hoursAgo(23)},
		{Title: "24h", Link: "http://x/24", PublishedAt: hoursAgo(24)},
	}

	result := Digest(items, DigestOptions{WindowStart: windowStart, Now: digestNow})

	expected := []string{"23h", "24h"}
	if got := titles(result); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestDigest_OutOfWindowCopyDoesNotHideRecentOne(t *testing.T) {
	items := []Item{
		{Title: "old copy", Link: "http://x/1", Source: "A", PublishedAt: hoursAgo(40 * 24)},
		{Title: "recent copy", Link: "http://x/1", Source: "B", PublishedAt: hoursAgo(24)},
	}
	opts := DigestOptions{
		WindowStart: digestNow.Add(-30 * 24 * time.Hour),
		Now:         digestNow,
		MissingDate: MissingDateExclude,
	}

	result := Digest(items, opts)
	if len(result) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(result))
	}
	if result[0].Source != "B" {
		t.Errorf("Expected the in-window copy from B, got source '%s'", result[0].Source)
	}

	if again := Digest(result, opts); !reflect.DeepEqual(titles(again), titles(result)) {
		t.Errorf("Expected digest to be idempotent, got %v then %v", titles(result), titles(again))
	}
}

func TestDigest_MissingDatePolicy(t *testing.T) {
	items := []Item{
		{Title: "undated", Link: "http://x/undated"},
		{Title: "old", Link: "http://x/old", PublishedAt: hoursAgo(2)},
	}
	opts := DigestOptions{WindowStart: digestNow.Add(-6 * time.Hour), Now: digestNow}

	opts.MissingDate = MissingDateExclude
	if got := titles(Digest(items, opts)); !reflect.DeepEqual(got, []string{"old"}) {
		t.Errorf("Expected undated item excluded, got %v", got)
	}

	opts.MissingDate = MissingDateAsNow
	if got := titles(Digest(items, opts)); !reflect.DeepEqual(got, []string{"undated", "old"}) {
		t.Errorf("Expected undated item treated as now, got %v", got)
	}
}

func TestDigest_StableSort(t *testing.T) {
	same := hoursAgo(1)
	items := []Item{
		{Title: "first", Link: "http://x/a", PublishedAt: same},
		{Title: "newest", Link: "http://x/b", PublishedAt: hoursAgo(0)},
		{Title: "second", Link: "http://x/c", PublishedAt: same},
		{Title: "third", Link: "http://x/d", PublishedAt: same},
	}

	result := Digest(items, DigestOptions{WindowStart: digestNow.Add(-time.Hour * 48), Now: digestNow})

	expected := []string{"newest", "first", "second", "third"}
	if got := titles(result); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestDigest_Idempotent(t *testing.T) {
	items := []Item{
		{Title: "a", Link: "http://x/1", PublishedAt: hoursAgo(3)},
		{Title: "b", Link: "http://x/1", PublishedAt: hoursAgo(1)},
		{Title: "c", Link: PlaceholderLink, GUID: "g1"},
		{Title: "d", Link: PlaceholderLink, GUID: "g1"},
		{Title: "e", Link: PlaceholderLink, PublishedAt: hoursAgo(5)},
		{Title: "e", Link: PlaceholderLink, PublishedAt: hoursAgo(5)},
	}

	for _, policy := range []MissingDatePolicy{MissingDateExclude, MissingDateAsNow} {
		opts := DigestOptions{WindowStart: digestNow.Add(-24 * time.Hour), Now: digestNow, MissingDate: policy}

		once := Digest(items, opts)
		twice := Digest(once, opts)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Policy %d: expected idempotent digest, got %v then %v", policy, titles(once), titles(twice))
		}
	}
}

func TestDigest_Cap(t *testing.T) {
	items := make([]Item, 0, 2500)
	for i := 0; i < 2500; i++ {
		published := digestNow.Add(-time.Duration(i) * time.Minute)
		items = append(items, Item{
			Title:       fmt.Sprintf("item %d", i),
			Link:        fmt.Sprintf("http://x/%d", i),
			PublishedAt: &published,
		})
	}
	// Reverse so the sort has work to do
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	result := Digest(items, DigestOptions{WindowStart: digestNow.Add(-30 * 24 * time.Hour), Now: digestNow, Limit: 2000})

	if len(result) != 2000 {
		t.Fatalf("Expected 2000 items, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].PublishedAt.After(*result[i-1].PublishedAt) {
			t.Fatalf("Items not sorted newest first at index %d", i)
		}
	}
	if result[0].Title != "item 0" {
		t.Errorf("Expected newest item first, got '%s'", result[0].Title)
	}
}

func TestDigest_DoesNotModifyInput(t *testing.T) {
	items := []Item{
		{Title: "older", Link: "http://x/1", PublishedAt: hoursAgo(2)},
		{Title: "newer", Link: "http://x/2", PublishedAt: hoursAgo(1)},
	}

	Digest(items, DigestOptions{WindowStart: digestNow.Add(-24 * time.Hour), Now: digestNow})

	if items[0].Title != "older" {
		t.Errorf("Expected input order preserved, got %v", titles(items))
	}
}

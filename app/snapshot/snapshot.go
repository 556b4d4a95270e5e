package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lysyi3m/rss-digest/app/aggregator"
	"github.com/lysyi3m/rss-digest/app/feed"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// WriteError reports a snapshot that could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write snapshot %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type Envelope struct {
	FetchedAt  string `json:"fetched_at"`
	FeedCount  int    `json:"feed_count"`
	ItemsCount int    `json:"items_count"`
	Items      []Item `json:"items"`
}

type Item struct {
	Title          string  `json:"title"`
	Link           *string `json:"link"`
	ISODate        *string `json:"isoDate"`
	PubDate        *string `json:"pubDate"`
	ContentSnippet string  `json:"contentSnippet"`
	Content        string  `json:"content"`
	GUID           *string `json:"guid"`
	Source         string  `json:"source"`
	FeedURL        string  `json:"feedUrl"`
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func NewEnvelope(result *aggregator.Result) Envelope {
	items := make([]Item, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, NewItem(item))
	}

	return Envelope{
		FetchedAt:  FormatTime(result.FetchedAt),
		FeedCount:  result.FeedCount,
		ItemsCount: result.ItemCount,
		Items:      items,
	}
}

// NewItem converts an item to its JSON form.
func NewItem(item feed.Item) Item {
	out := Item{
		Title:          item.Title,
		ContentSnippet: item.Summary,
		Content:        item.Content,
		Source:         item.Source,
		FeedURL:        item.FeedURL,
	}

	if item.HasLink() {
		link := item.Link
		out.Link = &link
	}
	if item.GUID != "" {
		guid := item.GUID
		out.GUID = &guid
	}
	if item.PublishedAt != nil {
		date := FormatTime(*item.PublishedAt)
		out.ISODate = &date
		out.PubDate = &date
	}

	return out
}

// Write stores the result at path. The file is replaced atomically so readers
// never observe a partial snapshot.
func Write(path string, result *aggregator.Result) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewEnvelope(result)); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	data := buf.Bytes()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}

	return nil
}

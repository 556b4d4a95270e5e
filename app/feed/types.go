package feed

import (
	"time"
)

const (
	DefaultTitle    = "(no title)"
	PlaceholderLink = "#"
)

// Descriptor is a feed source declared in the OPML outline.
type Descriptor struct {
	Title string
	URL   string
}

// Feed processing types

type Metadata struct {
	Title string
}

// RawItem is an entry as the parser found it, before any fallbacks apply.
type RawItem struct {
	Title           string
	Link            string
	GUID            string
	Published       string
	PublishedParsed *time.Time
	Updated         string
	UpdatedParsed   *time.Time
	DCDate          string
	Description     string
	Content         string
	Authors         []string
	Categories      []string
}

type Item struct {
	Title       string
	Link        string
	PublishedAt *time.Time // nil when no date could be parsed
	Source      string
	GUID        string
	Summary     string
	Content     string
	FeedURL     string
	Authors     []string
	Categories  []string
}

// HasLink reports whether the item carries a real link rather than the placeholder.
func (i Item) HasLink() bool {
	return i.Link != "" && i.Link != PlaceholderLink
}

// Fetched is the outcome of a successful fetch.
type Fetched struct {
	Metadata *Metadata
	Items    []RawItem
	Attempts int
}

// Rule configuration types

type Rules struct {
	Filters []RuleFilter `yaml:"filters"`
}

type RuleFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

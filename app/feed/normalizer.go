package feed

import (
	"cmp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/text/unicode/norm"
)

const snippetLength = 400

// Normalize converts parsed entries into items, applying field fallbacks.
// It never fails; missing fields get defaults.
func Normalize(raw []RawItem, sourceTitle, feedURL string) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, NormalizeItem(r, sourceTitle, feedURL))
	}
	return items
}

func NormalizeItem(raw RawItem, sourceTitle, feedURL string) Item {
	title := norm.NFC.String(strings.TrimSpace(raw.Title))

	return Item{
		Title:       cmp.Or(title, DefaultTitle),
		Link:        cmp.Or(raw.Link, raw.GUID, PlaceholderLink),
		PublishedAt: ResolveDate(raw),
		Source:      sourceTitle,
		GUID:        raw.GUID,
		Summary:     summary(raw),
		Content:     cmp.Or(raw.Content, raw.Description),
		FeedURL:     feedURL,
		Authors:     raw.Authors,
		Categories:  raw.Categories,
	}
}

// SourceTitle picks the display name of a feed.
func SourceTitle(metadata *Metadata, descriptor Descriptor) string {
	var metaTitle string
	if metadata != nil {
		metaTitle = strings.TrimSpace(metadata.Title)
	}
	return cmp.Or(metaTitle, strings.TrimSpace(descriptor.Title), descriptor.URL)
}

// ResolveDate returns the first parseable publication date in UTC, or nil.
func ResolveDate(raw RawItem) *time.Time {
	if t := utc(raw.PublishedParsed); t != nil {
		return t
	}
	if t := parseDate(raw.Published); t != nil {
		return t
	}
	if t := utc(raw.UpdatedParsed); t != nil {
		return t
	}
	if t := parseDate(raw.Updated); t != nil {
		return t
	}
	return parseDate(raw.DCDate)
}

func utc(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	return utc(&t)
}

func summary(raw RawItem) string {
	if text := PlainText(raw.Description); text != "" {
		return text
	}
	if text := truncate(PlainText(raw.Content), snippetLength); text != "" {
		return text
	}
	return truncate(raw.Content, snippetLength)
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}

	doc.Find("script, style").Remove()
	return collapse(doc.Text())
}

func collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

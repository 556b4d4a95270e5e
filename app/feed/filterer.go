package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

type Filterer struct {
	rules *Rules
}

func NewFilterer(rules *Rules) *Filterer {
	if rules == nil {
		rules = &Rules{}
	}
	return &Filterer{rules: rules}
}

// Run drops items rejected by the rules and returns the survivors along with
// the number of dropped items.
func (f *Filterer) Run(items []Item) ([]Item, int) {
	if len(f.rules.Filters) == 0 {
		return items, 0
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if isFiltered, reason := f.applyFilters(item); isFiltered {
			slog.Debug("Item filtered", "title", item.Title, "source", item.Source, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept, len(items) - len(kept)
}

func (f *Filterer) applyFilters(item Item) (bool, string) {
	for _, filter := range f.rules.Filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "summary":
		return item.Summary
	case "content":
		return item.Content
	case "link":
		return item.Link
	case "source":
		return item.Source
	default:
		return ""
	}
}

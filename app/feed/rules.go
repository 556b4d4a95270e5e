package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var validRuleFields = map[string]bool{
	"title":   true,
	"summary": true,
	"content": true,
	"link":    true,
	"source":  true,
}

// LoadRules reads keyword rules from a YAML file. An empty path yields no rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}

	return rules, nil
}

func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := rules.validate(); err != nil {
		return nil, err
	}

	return &rules, nil
}

func (r *Rules) validate() error {
	for i, filter := range r.Filters {
		if !validRuleFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

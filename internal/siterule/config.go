package siterule

import (
	"encoding/json"
	"fmt"
	"os"

	"pricewatch/internal/model"
)

// LoadFromFile reads a JSON array of model.SiteRule from path and builds a
// Table. This is the "static configuration file at startup" of §4.2; the
// table is never mutated at runtime afterward.
func LoadFromFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("siterule: read %s: %w", path, err)
	}

	var rules []model.SiteRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("siterule: parse %s: %w", path, err)
	}

	return New(rules), nil
}

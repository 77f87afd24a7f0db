// Package quality parses the quality model shipped with a job and scores a
// job's review annotations against it.
package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/l10nmonster/lqa-boss-sub001/internal/validate"
)

// Model defines the error taxonomy reviewers annotate with and how the
// resulting findings are weighted.
type Model struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Severities []Severity `json:"severities"`
	Categories []Category `json:"categories"`
	// ScoreExpr is an optional expression computing the final score from
	// ept, words, errors, penalty and bySeverity. Defaults to 100 - ept.
	ScoreExpr string `json:"scoreExpr,omitempty"`
	// PassThreshold, when positive, is the minimum passing score.
	PassThreshold float64 `json:"passThreshold,omitempty"`
}

// Severity is one penalty level.
type Severity struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// Category is one error class, optionally split into subcategories.
type Category struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

// Parse decodes and validates a model document.
func Parse(data []byte) (*Model, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("quality model: empty payload")
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("quality model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("quality model: %w", err)
	}
	return &m, nil
}

// Validate checks id uniqueness, weights and the score expression.
func (m *Model) Validate() error {
	var errs validate.List
	if len(m.Severities) == 0 {
		errs.Add("severities must be non-empty")
	}
	seen := make(map[string]struct{}, len(m.Severities))
	for i, s := range m.Severities {
		prefix := fmt.Sprintf("severities[%d] (%s)", i, s.ID)
		if strings.TrimSpace(s.ID) == "" {
			errs.Add("%s: id must be non-empty", prefix)
		} else if _, dup := seen[s.ID]; dup {
			errs.Add("%s: duplicate id", prefix)
		}
		seen[s.ID] = struct{}{}
		if s.Weight < 0 {
			errs.Add("%s: weight must be >= 0 (got %g)", prefix, s.Weight)
		}
	}
	cats := make(map[string]struct{})
	checkCategories(&errs, "categories", m.Categories, cats)
	if m.ScoreExpr != "" {
		if _, err := compileScore(m.ScoreExpr); err != nil {
			errs.Add("scoreExpr: %v", err)
		}
	}
	if m.PassThreshold < 0 {
		errs.Add("passThreshold must be >= 0 (got %g)", m.PassThreshold)
	}
	return errs.Err()
}

func checkCategories(errs *validate.List, path string, list []Category, seen map[string]struct{}) {
	for i, c := range list {
		prefix := fmt.Sprintf("%s[%d] (%s)", path, i, c.ID)
		if strings.TrimSpace(c.ID) == "" {
			errs.Add("%s: id must be non-empty", prefix)
		} else if _, dup := seen[c.ID]; dup {
			errs.Add("%s: duplicate id", prefix)
		}
		seen[c.ID] = struct{}{}
		checkCategories(errs, prefix+".subcategories", c.Subcategories, seen)
	}
}

// Weight returns the weight of a severity id and whether it is known.
func (m *Model) Weight(severity string) (float64, bool) {
	for _, s := range m.Severities {
		if s.ID == severity {
			return s.Weight, true
		}
	}
	return 0, false
}

// HasCategory reports whether id names a category or subcategory.
func (m *Model) HasCategory(id string) bool {
	return findCategory(m.Categories, id)
}

func findCategory(list []Category, id string) bool {
	for _, c := range list {
		if c.ID == id || findCategory(c.Subcategories, id) {
			return true
		}
	}
	return false
}

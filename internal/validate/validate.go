// Package validate performs semantic checks on loaded job artifacts that a
// JSON schema cannot express (guid uniqueness after collapse, language
// pair sanity, geometry bounds). Issues are aggregated into a single error.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

// Job checks a job after duplicate guids have been collapsed:
//
//   - sourceLang and targetLang must be non-empty.
//   - Every unit has a non-empty guid, unique within the job.
//   - A unit with candidates must not also carry a target.
func Job(j *job.Job) error {
	var errs List

	if strings.TrimSpace(j.SourceLang) == "" {
		errs.Add("job.sourceLang must be non-empty")
	}
	if strings.TrimSpace(j.TargetLang) == "" {
		errs.Add("job.targetLang must be non-empty")
	}

	seen := make(map[string]struct{}, len(j.TUs))
	for i, tu := range j.TUs {
		prefix := fmt.Sprintf("tus[%d] (%s)", i, tu.GUID)
		if strings.TrimSpace(tu.GUID) == "" {
			errs.Add("%s: guid must be non-empty", prefix)
		} else if _, dup := seen[tu.GUID]; dup {
			errs.Add("%s: duplicate guid %q", prefix, tu.GUID)
		} else {
			seen[tu.GUID] = struct{}{}
		}
		if tu.HasCandidates() && !tu.NTgt.IsEmpty() {
			errs.Add("%s: unit with candidates must have an empty ntgt", prefix)
		}
	}

	return errs.Err()
}

// Rect checks on-page segment geometry.
func Rect(errs *List, prefix string, x, y, w, h float64) {
	if x < 0 || y < 0 {
		errs.Add("%s: origin must be non-negative (x=%g, y=%g)", prefix, x, y)
	}
	if w < 0 || h < 0 {
		errs.Add("%s: size must be non-negative (width=%g, height=%g)", prefix, w, h)
	}
}

// List aggregates multiple validation issues into a single error.
type List struct {
	msgs []string
}

// Add records one issue.
func (e *List) Add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

// Len returns the number of recorded issues.
func (e *List) Len() int {
	if e == nil {
		return 0
	}
	return len(e.msgs)
}

// Err returns nil when no issue was recorded.
func (e *List) Err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	// Join with newline for readability.
	return errors.New(strings.Join(e.msgs, "\n"))
}

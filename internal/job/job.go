// Package job holds the translation job data model shared by the loader,
// the reconciler and the storage backends. Every type offers an explicit
// Clone so snapshots never share structure.
package job

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Annotation is one quality finding attached to a unit by the reviewer.
type Annotation struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Comment  string `json:"comment,omitempty"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
}

// TU is a translation unit. NTgt is the only field edits are expected to
// change; Q, TS and QA are review metadata compared by QualityEqual.
type TU struct {
	GUID              string          `json:"guid"`
	RID               string          `json:"rid,omitempty"`
	SID               string          `json:"sid,omitempty"`
	NSrc              Parts           `json:"nsrc"`
	NTgt              Parts           `json:"ntgt"`
	Notes             json.RawMessage `json:"notes,omitempty"`
	Q                 int             `json:"q,omitempty"`
	TS                int64           `json:"ts,omitempty"`
	QA                []Annotation    `json:"qa,omitempty"`
	Candidates        []Parts         `json:"candidates,omitempty"`
	CandidateSelected bool            `json:"candidateSelected,omitempty"`
}

// Clone returns a deep copy of tu.
func (tu *TU) Clone() *TU {
	if tu == nil {
		return nil
	}
	out := *tu
	out.NSrc = tu.NSrc.Clone()
	out.NTgt = tu.NTgt.Clone()
	if tu.Notes != nil {
		out.Notes = append(json.RawMessage(nil), tu.Notes...)
	}
	if tu.QA != nil {
		out.QA = slices.Clone(tu.QA)
	}
	if tu.Candidates != nil {
		out.Candidates = make([]Parts, len(tu.Candidates))
		for i, c := range tu.Candidates {
			out.Candidates[i] = c.Clone()
		}
	}
	return &out
}

// HasCandidates reports whether a choice between translations is pending.
func (tu *TU) HasCandidates() bool { return len(tu.Candidates) > 0 }

// QualityEqual compares the review metadata of two units.
func (tu *TU) QualityEqual(o *TU) bool {
	return tu.Q == o.Q && tu.TS == o.TS && slices.Equal(tu.QA, o.QA)
}

// ContentEqual reports whether target and review metadata match.
func (tu *TU) ContentEqual(o *TU) bool {
	return tu.NTgt.Equal(o.NTgt) && tu.QualityEqual(o)
}

// Job is an ordered collection of units plus job-level metadata.
type Job struct {
	SourceLang          string `json:"sourceLang"`
	TargetLang          string `json:"targetLang"`
	Instructions        string `json:"instructions,omitempty"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
	TranslationProvider string `json:"translationProvider,omitempty"`
	JobGUID             string `json:"jobGuid,omitempty"`
	TUs                 []*TU  `json:"tus"`
}

// Parse decodes a job document.
func Parse(b []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if j.TUs == nil {
		j.TUs = []*TU{}
	}
	return &j, nil
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := j.Meta()
	out.TUs = make([]*TU, len(j.TUs))
	for i, tu := range j.TUs {
		out.TUs[i] = tu.Clone()
	}
	return out
}

// Meta returns the job-level metadata with an empty unit list.
func (j *Job) Meta() *Job {
	out := *j
	out.TUs = []*TU{}
	return &out
}

// Index maps guid to unit. Pointers refer into j; the first unit wins on
// duplicate guids.
func (j *Job) Index() map[string]*TU {
	m := make(map[string]*TU, len(j.TUs))
	for _, tu := range j.TUs {
		if _, dup := m[tu.GUID]; !dup {
			m[tu.GUID] = tu
		}
	}
	return m
}

// Find returns the unit with guid and its position, or (nil, -1).
func (j *Job) Find(guid string) (*TU, int) {
	for i, tu := range j.TUs {
		if tu.GUID == guid {
			return tu, i
		}
	}
	return nil, -1
}

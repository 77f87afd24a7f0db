// Package delta computes what has to be persisted for a job and merges
// persisted data back into a freshly loaded job.
//
// The save side never sends the full unit list: only units whose target
// differs from the archived reference, or that the reference does not know.
package delta

import (
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

// Changed returns clones of the units in current whose target differs from
// the same-guid unit in reference, plus units reference lacks. Order follows
// current.
func Changed(reference, current *job.Job) []*job.TU {
	out := make([]*job.TU, 0)
	if current == nil {
		return out
	}
	var ref map[string]*job.TU
	if reference != nil {
		ref = indexByGUID(reference.TUs)
	}
	for _, tu := range current.TUs {
		r, ok := ref[tu.GUID]
		if !ok || !r.NTgt.Equal(tu.NTgt) {
			out = append(out, tu.Clone())
		}
	}
	return out
}

// Persistable extends Changed with units whose target is unchanged but whose
// review metadata (score, timestamp, annotations) differs from reference.
func Persistable(reference, current *job.Job) []*job.TU {
	out := make([]*job.TU, 0)
	if current == nil {
		return out
	}
	var ref map[string]*job.TU
	if reference != nil {
		ref = indexByGUID(reference.TUs)
	}
	for _, tu := range current.TUs {
		r, ok := ref[tu.GUID]
		if !ok || !r.NTgt.Equal(tu.NTgt) || !r.QualityEqual(tu) {
			out = append(out, tu.Clone())
		}
	}
	return out
}

// Payload wraps changed units with the job-level metadata of meta. The
// result is what a storage backend receives on save.
func Payload(meta *job.Job, changed []*job.TU) *job.Job {
	p := meta.Meta()
	p.TUs = make([]*job.TU, len(changed))
	for i, tu := range changed {
		p.TUs[i] = tu.Clone()
	}
	return p
}

// ApplyLoadedTranslations merges persisted units into a clone of base. A
// persisted unit with a non-empty target overwrites the target of the
// same-guid base unit, carries its review metadata and candidate flag, and
// drops pending candidates. Base units without a counterpart, and persisted
// units without a base unit, are left alone.
//
// The count is the number of merged units whose persisted target differs
// from the base unit's own target.
func ApplyLoadedTranslations(base, saved *job.Job) (*job.Job, int) {
	if base == nil {
		return nil, 0
	}
	out := base.Clone()
	if saved == nil || len(saved.TUs) == 0 {
		return out, 0
	}
	lookup := indexByGUID(saved.TUs)
	edited := 0
	for _, tu := range out.TUs {
		s, ok := lookup[tu.GUID]
		if !ok || s.NTgt.IsEmpty() {
			continue
		}
		if !s.NTgt.Equal(tu.NTgt) {
			edited++
		}
		tu.NTgt = s.NTgt.Clone()
		tu.Candidates = nil
		tu.CandidateSelected = s.CandidateSelected
		if hasReview(s) {
			tu.Q, tu.TS = s.Q, s.TS
			tu.QA = append([]job.Annotation(nil), s.QA...)
		}
	}
	return out, edited
}

// EditedCount counts persisted units with a non-empty target that differs
// from the same-guid unit in reference. Pass the archived job (not the
// source-filled one) to count against the translation actually shipped.
func EditedCount(reference, saved *job.Job) int {
	if reference == nil || saved == nil {
		return 0
	}
	ref := indexByGUID(reference.TUs)
	n := 0
	for _, s := range saved.TUs {
		r, ok := ref[s.GUID]
		if ok && !s.NTgt.IsEmpty() && !s.NTgt.Equal(r.NTgt) {
			n++
		}
	}
	return n
}

// Stats summarizes a snapshot pair for display.
type Stats struct {
	Total             int
	Changed           int
	PendingCandidates int
	Annotated         int
}

// Summary counts units of current against reference.
func Summary(reference, current *job.Job) Stats {
	st := Stats{Total: len(current.TUs), Changed: len(Changed(reference, current))}
	for _, tu := range current.TUs {
		if tu.HasCandidates() {
			st.PendingCandidates++
		}
		if len(tu.QA) > 0 {
			st.Annotated++
		}
	}
	return st
}

func hasReview(tu *job.TU) bool {
	return tu.Q != 0 || tu.TS != 0 || len(tu.QA) > 0
}

func indexByGUID(tus []*job.TU) map[string]*job.TU {
	m := make(map[string]*job.TU, len(tus))
	for _, tu := range tus {
		if _, dup := m[tu.GUID]; !dup {
			m[tu.GUID] = tu
		}
	}
	return m
}

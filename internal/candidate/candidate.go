// Package candidate folds units that share a guid into a single unit with a
// list of alternate translations, and resolves that list when possible.
package candidate

import "github.com/l10nmonster/lqa-boss-sub001/internal/job"

// Collapse scans units in order. The first unit for a guid is canonical; the
// target of every later unit with that guid is appended to the canonical
// unit's candidates, which are seeded with the canonical target itself.
// Units are cloned and then resolved with Resolve. Empty targets never
// become candidates.
func Collapse(tus []*job.TU) []*job.TU {
	out := make([]*job.TU, 0, len(tus))
	byGUID := make(map[string]*job.TU, len(tus))
	for _, tu := range tus {
		if tu == nil {
			continue
		}
		canon, seen := byGUID[tu.GUID]
		if !seen {
			c := tu.Clone()
			byGUID[tu.GUID] = c
			out = append(out, c)
			continue
		}
		if canon.Candidates == nil {
			canon.Candidates = []job.Parts{}
		}
		add(canon, canon.NTgt)
		add(canon, tu.NTgt)
		for _, c := range tu.Candidates {
			add(canon, c)
		}
	}
	for _, tu := range out {
		Resolve(tu)
	}
	return out
}

func add(tu *job.TU, p job.Parts) {
	if p.IsEmpty() || contains(tu.Candidates, p) {
		return
	}
	tu.Candidates = append(tu.Candidates, p.Clone())
}

// Resolve deduplicates tu's candidates by structural equality. A single
// survivor becomes the target and the list is dropped. Two or more leave
// the list in place with an empty target so the reviewer has to choose.
func Resolve(tu *job.TU) {
	if tu.Candidates == nil {
		return
	}
	uniq := Dedupe(tu.Candidates)
	switch len(uniq) {
	case 0:
		tu.Candidates = nil
	case 1:
		tu.NTgt = uniq[0]
		tu.Candidates = nil
	default:
		tu.Candidates = uniq
		tu.NTgt = job.Parts{}
	}
}

// Dedupe returns the distinct, non-empty entries of cands in first-seen
// order. Entries are cloned.
func Dedupe(cands []job.Parts) []job.Parts {
	out := make([]job.Parts, 0, len(cands))
	for _, c := range cands {
		if c.IsEmpty() || contains(out, c) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// Select promotes candidate index to the target. It reports false and leaves
// tu untouched when there are no candidates or index is out of range.
func Select(tu *job.TU, index int) bool {
	if tu == nil || index < 0 || index >= len(tu.Candidates) {
		return false
	}
	tu.NTgt = tu.Candidates[index].Clone()
	tu.Candidates = nil
	tu.CandidateSelected = true
	return true
}

// Pending counts units still waiting for a candidate choice.
func Pending(j *job.Job) int {
	n := 0
	for _, tu := range j.TUs {
		if tu.HasCandidates() {
			n++
		}
	}
	return n
}

func contains(list []job.Parts, p job.Parts) bool {
	for _, c := range list {
		if c.Equal(p) {
			return true
		}
	}
	return false
}

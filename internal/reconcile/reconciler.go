// Package reconcile owns the three snapshots of an open job: original (as
// archived), saved (last persisted) and current (the edit buffer), and
// derives the file status from how they relate.
//
// Snapshots never leave the package by reference. Readers get clones and
// writers hand in units that are cloned on the way in.
package reconcile

import (
	"log/slog"
	"sync"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/candidate"
	"github.com/l10nmonster/lqa-boss-sub001/internal/delta"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

// Reconciler is safe for concurrent use.
type Reconciler struct {
	mu       sync.Mutex
	logger   *slog.Logger
	original *job.Job
	saved    *job.Job
	current  *job.Job
	status   FileStatus
}

// New returns an empty reconciler. A nil logger selects slog.Default().
func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger, status: StatusNew}
}

// SetupTwoState seeds all three snapshots with independent copies of j.
// Used when no persisted data exists for the job.
func (r *Reconciler) SetupTwoState(j *job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.original = j.Clone()
	r.saved = j.Clone()
	r.current = j.Clone()
	r.status = StatusNew
	r.logger.Debug("reconcile.setup", "mode", "two-state", "units", len(j.TUs))
}

// SetupThreeState seeds original from the job as archived (targets not
// filled from source) and both saved and current from loadedSaved.
func (r *Reconciler) SetupThreeState(archived, loadedSaved *job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.original = archived.Clone()
	r.saved = loadedSaved.Clone()
	r.current = loadedSaved.Clone()
	r.status = StatusLoaded
	r.logger.Debug("reconcile.setup", "mode", "three-state", "units", len(loadedSaved.TUs))
}

// Ready reports whether a job has been set up.
func (r *Reconciler) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Reset drops all snapshots.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.original, r.saved, r.current = nil, nil, nil
	r.status = StatusNew
}

// UpdateTranslationUnit replaces the current unit with tu's guid. It reports
// false without touching anything when neither the target nor the review
// metadata differ. A target change clears CandidateSelected. Unknown guids
// and a nil unit yield a NOT_FOUND error.
func (r *Reconciler) UpdateTranslationUnit(tu *job.TU) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return false, apperr.New(apperr.CodeNotFound, "no job loaded", nil)
	}
	if tu == nil {
		return false, apperr.New(apperr.CodeNotFound, "nil unit", nil)
	}
	existing, idx := r.current.Find(tu.GUID)
	if existing == nil {
		return false, apperr.New(apperr.CodeNotFound, "unknown unit "+tu.GUID, nil)
	}
	targetChanged := !existing.NTgt.Equal(tu.NTgt)
	if !targetChanged && existing.QualityEqual(tu) {
		return false, nil
	}
	next := tu.Clone()
	if targetChanged {
		next.CandidateSelected = false
	}
	r.current.TUs[idx] = next
	r.recompute()
	return true, nil
}

// recompute applies DeriveStatus against the active baseline. Callers hold mu.
func (r *Reconciler) recompute() {
	baseline, clean := r.original, StatusNew
	if r.status == StatusLoaded {
		baseline, clean = r.saved, StatusLoaded
	}
	r.setStatus(DeriveStatus(r.current, baseline, clean))
}

func (r *Reconciler) setStatus(to FileStatus) {
	from := r.status
	if from == to {
		return
	}
	if !IsTransitionAllowed(from, to) {
		r.logger.Warn("reconcile.status.unexpected", "from", from, "to", to)
	}
	r.status = to
	r.logger.Debug("reconcile.status", "from", from, "to", to)
}

// MarkAsSaved sets the status to SAVED. Snapshots are not touched; use
// ApplySaved to move the persisted units into the saved snapshot.
func (r *Reconciler) MarkAsSaved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatus(StatusSaved)
}

// ApplySaved merges a persisted payload into the saved snapshot.
func (r *Reconciler) ApplySaved(payload *job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		return
	}
	r.saved, _ = delta.ApplyLoadedTranslations(r.saved, payload)
}

// CommitSave records a completed save. payload is merged into the saved
// snapshot. The status becomes SAVED only when the edit buffer still equals
// sent, the snapshot the payload was built from; edits made while the save
// was in flight leave the status derived from the buffer instead. Reports
// whether the job is now SAVED.
func (r *Reconciler) CommitSave(sent, payload *job.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved != nil {
		r.saved, _ = delta.ApplyLoadedTranslations(r.saved, payload)
	}
	if Diverges(r.current, sent) {
		r.recompute()
		return false
	}
	r.setStatus(StatusSaved)
	return true
}

// SelectCandidate promotes candidate index of unit guid. The choice is
// mirrored into the saved snapshot so the unit reads as saved, and the
// original loses its candidate list but keeps its target. Reports false
// when the unit has no candidates or index is out of range.
func (r *Reconciler) SelectCandidate(guid string, index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return false
	}
	cur, _ := r.current.Find(guid)
	if cur == nil || !candidate.Select(cur, index) {
		return false
	}
	if s, _ := r.saved.Find(guid); s != nil {
		s.NTgt = cur.NTgt.Clone()
		s.Candidates = nil
		s.CandidateSelected = true
	}
	if o, _ := r.original.Find(guid); o != nil {
		o.Candidates = nil
	}
	r.setStatus(StatusChanged)
	return true
}

// ChangedTUs returns clones of the units whose current target differs from
// the original, plus units the original lacks.
func (r *Reconciler) ChangedTUs() []*job.TU {
	r.mu.Lock()
	defer r.mu.Unlock()
	return delta.Changed(r.original, r.current)
}

// Status returns the current file status.
func (r *Reconciler) Status() FileStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Original returns a copy of the original snapshot.
func (r *Reconciler) Original() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.original.Clone()
}

// Saved returns a copy of the saved snapshot.
func (r *Reconciler) Saved() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved.Clone()
}

// Current returns a copy of the edit buffer.
func (r *Reconciler) Current() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

// Unit returns a copy of the current unit with guid.
func (r *Reconciler) Unit(guid string) (*job.TU, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, false
	}
	tu, _ := r.current.Find(guid)
	if tu == nil {
		return nil, false
	}
	return tu.Clone(), true
}

// UnitState classifies unit guid across the triad.
func (r *Reconciler) UnitState(guid string) (UnitState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	cur, _ := r.current.Find(guid)
	if cur == nil {
		return "", false
	}
	orig, _ := r.original.Find(guid)
	saved, _ := r.saved.Find(guid)
	return ClassifyUnit(orig, saved, cur), true
}

// Summary counts units of the edit buffer against the original.
func (r *Reconciler) Summary() delta.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return delta.Stats{}
	}
	return delta.Summary(r.original, r.current)
}

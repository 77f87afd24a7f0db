package reconcile

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func unit(guid string, tgt ...string) *job.TU {
	u := &job.TU{GUID: guid, NSrc: job.Parts{job.Text("src-" + guid)}, NTgt: job.Parts{}}
	for _, s := range tgt {
		u.NTgt = append(u.NTgt, job.Text(s))
	}
	return u
}

func jobOf(tus ...*job.TU) *job.Job {
	return &job.Job{SourceLang: "en", TargetLang: "es", TUs: tus}
}

func edit(t *testing.T, r *Reconciler, guid, text string) bool {
	t.Helper()
	tu, ok := r.Unit(guid)
	if !ok {
		t.Fatalf("unit %s missing", guid)
	}
	tu.NTgt = job.Parts{job.Text(text)}
	changed, err := r.UpdateTranslationUnit(tu)
	if err != nil {
		t.Fatalf("UpdateTranslationUnit: %v", err)
	}
	return changed
}

func TestTwoStateIndependentCopies(t *testing.T) {
	in := jobOf(unit("a", "A"))
	r := New(quiet())
	r.SetupTwoState(in)

	in.TUs[0].NTgt[0].Text = "mutated by caller"
	if r.Original().TUs[0].NTgt.PlainText() != "A" {
		t.Fatalf("reconciler aliases the caller's job")
	}
	if r.original.TUs[0] == r.saved.TUs[0] || r.saved.TUs[0] == r.current.TUs[0] {
		t.Fatalf("snapshots share units")
	}
	if r.Status() != StatusNew {
		t.Fatalf("status got %s", r.Status())
	}
}

func TestStatusSequence(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	if got := r.Status(); got != StatusNew {
		t.Fatalf("after load got %s", got)
	}
	if !edit(t, r, "a", "A2") || r.Status() != StatusChanged {
		t.Fatalf("after edit got %s", r.Status())
	}
	r.MarkAsSaved()
	if r.Status() != StatusSaved {
		t.Fatalf("after save got %s", r.Status())
	}
	edit(t, r, "b", "B2")
	if r.Status() != StatusChanged {
		t.Fatalf("after second edit got %s", r.Status())
	}
}

func TestEditRevertedReturnsToNew(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A")))
	edit(t, r, "a", "A2")
	edit(t, r, "a", "A")
	if r.Status() != StatusNew {
		t.Fatalf("status got %s", r.Status())
	}
}

func TestUpdateNoOpAndUnknown(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A")))
	if edit(t, r, "a", "A") {
		t.Fatalf("identical update should be a no-op")
	}
	if r.Status() != StatusNew {
		t.Fatalf("no-op changed status to %s", r.Status())
	}
	_, err := r.UpdateTranslationUnit(unit("ghost", "x"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown guid: got %v", err)
	}
	if _, err := New(quiet()).UpdateTranslationUnit(unit("a", "x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty reconciler: got %v", err)
	}
}

func TestUpdateReviewMetadataOnly(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A")))
	tu, _ := r.Unit("a")
	tu.QA = []job.Annotation{{Category: "fluency", Severity: "minor"}}
	changed, err := r.UpdateTranslationUnit(tu)
	if err != nil || !changed {
		t.Fatalf("annotation update got %v, %v", changed, err)
	}
	if r.Status() != StatusChanged {
		t.Fatalf("status got %s", r.Status())
	}
	if len(r.ChangedTUs()) != 0 {
		t.Fatalf("annotation alone must not produce changed units")
	}
}

func TestUpdateClearsCandidateSelectedOnTargetChange(t *testing.T) {
	r := New(quiet())
	u := unit("a", "A")
	u.CandidateSelected = true
	r.SetupTwoState(jobOf(u))

	tu, _ := r.Unit("a")
	tu.Q = 7
	r.UpdateTranslationUnit(tu)
	if got, _ := r.Unit("a"); !got.CandidateSelected {
		t.Fatalf("metadata-only edit must keep CandidateSelected")
	}
	edit(t, r, "a", "B")
	if got, _ := r.Unit("a"); got.CandidateSelected {
		t.Fatalf("target edit must clear CandidateSelected")
	}
}

func TestUpdateDoesNotAliasCaller(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A")))
	tu, _ := r.Unit("a")
	tu.NTgt = job.Parts{job.Text("B")}
	r.UpdateTranslationUnit(tu)
	tu.NTgt[0].Text = "sneaky"
	if got, _ := r.Unit("a"); got.NTgt.PlainText() != "B" {
		t.Fatalf("caller mutation leaked into current: %q", got.NTgt.PlainText())
	}
}

func TestChangedTUsEmptyWhenUnedited(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	if got := r.ChangedTUs(); len(got) != 0 {
		t.Fatalf("ChangedTUs got %d", len(got))
	}
	edit(t, r, "b", "B2")
	got := r.ChangedTUs()
	if len(got) != 1 || got[0].GUID != "b" {
		t.Fatalf("ChangedTUs got %+v", got)
	}
}

func TestSelectCandidate(t *testing.T) {
	u := unit("tu1")
	u.Candidates = []job.Parts{{job.Text("A")}, {job.Text("B")}}
	r := New(quiet())
	r.SetupTwoState(jobOf(u, unit("x", "X")))

	if r.SelectCandidate("tu1", 5) || r.SelectCandidate("x", 0) || r.SelectCandidate("nope", 0) {
		t.Fatalf("invalid selections must be no-ops")
	}
	if r.Status() != StatusNew {
		t.Fatalf("no-op selection changed status to %s", r.Status())
	}
	if !r.SelectCandidate("tu1", 1) {
		t.Fatalf("SelectCandidate failed")
	}
	cur, _ := r.Unit("tu1")
	if cur.NTgt.PlainText() != "B" || cur.Candidates != nil || !cur.CandidateSelected {
		t.Fatalf("current got %+v", cur)
	}
	if r.Status() != StatusChanged {
		t.Fatalf("status got %s", r.Status())
	}
	saved, _ := r.Saved().Find("tu1")
	if saved.NTgt.PlainText() != "B" || saved.Candidates != nil {
		t.Fatalf("saved got %+v", saved)
	}
	orig, _ := r.Original().Find("tu1")
	if orig.Candidates != nil || !orig.NTgt.IsEmpty() {
		t.Fatalf("original got %+v", orig)
	}
	if st, _ := r.UnitState("tu1"); st != UnitSaved {
		t.Fatalf("unit state got %s", st)
	}
	if got := r.ChangedTUs(); len(got) != 1 || got[0].GUID != "tu1" {
		t.Fatalf("selection must still be persisted, changed got %+v", got)
	}
	if r.saved.TUs[0].NTgt[0].Ph != nil || &r.saved.TUs[0].NTgt[0] == &r.current.TUs[0].NTgt[0] {
		t.Fatalf("saved and current share the selected target")
	}
}

func TestThreeStateEndToEnd(t *testing.T) {
	archived := jobOf(unit("a", "Hi"))
	saved := jobOf(unit("a", "Hola"))
	r := New(quiet())
	r.SetupThreeState(archived, saved)

	if r.Status() != StatusLoaded {
		t.Fatalf("status got %s", r.Status())
	}
	cur, _ := r.Unit("a")
	if cur.NTgt.PlainText() != "Hola" {
		t.Fatalf("current got %q", cur.NTgt.PlainText())
	}
	if st, _ := r.UnitState("a"); st != UnitSaved {
		t.Fatalf("unit state got %s", st)
	}
	saved.TUs[0].NTgt[0].Text = "caller edit"
	if cur, _ := r.Unit("a"); cur.NTgt.PlainText() != "Hola" {
		t.Fatalf("current aliases loadedSaved")
	}

	edit(t, r, "a", "Buenas")
	if r.Status() != StatusChanged {
		t.Fatalf("status after edit got %s", r.Status())
	}
	if st, _ := r.UnitState("a"); st != UnitModified {
		t.Fatalf("unit state after edit got %s", st)
	}
	edit(t, r, "a", "Hi")
	if st, _ := r.UnitState("a"); st != UnitOriginal {
		t.Fatalf("unit state after revert got %s", st)
	}
}

func TestApplySavedMovesPayloadIntoSaved(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	edit(t, r, "a", "A2")
	payload := jobOf(r.ChangedTUs()...)
	r.ApplySaved(payload)
	r.MarkAsSaved()

	if st, _ := r.UnitState("a"); st != UnitSaved {
		t.Fatalf("unit state got %s", st)
	}
	if got, _ := r.Saved().Find("b"); got.NTgt.PlainText() != "B" {
		t.Fatalf("untouched unit changed in saved")
	}
	if got, _ := r.Original().Find("a"); got.NTgt.PlainText() != "A" {
		t.Fatalf("original must never change")
	}
}

func TestCommitSave(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	edit(t, r, "a", "A2")
	sent := r.Current()
	payload := jobOf(r.ChangedTUs()...)
	if !r.CommitSave(sent, payload) || r.Status() != StatusSaved {
		t.Fatalf("clean commit got %s", r.Status())
	}

	edit(t, r, "a", "A3")
	sent = r.Current()
	payload = jobOf(r.ChangedTUs()...)
	edit(t, r, "b", "B2")
	if r.CommitSave(sent, payload) {
		t.Fatalf("commit with a newer edit reported SAVED")
	}
	if r.Status() != StatusChanged {
		t.Fatalf("status got %s", r.Status())
	}
	if got, _ := r.Saved().Find("a"); got.NTgt.PlainText() != "A3" {
		t.Fatalf("saved snapshot got %q", got.NTgt.PlainText())
	}
	if st, _ := r.UnitState("b"); st != UnitModified {
		t.Fatalf("unit b state got %s", st)
	}
}

func TestUpdateNilUnit(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A")))
	changed, err := r.UpdateTranslationUnit(nil)
	if changed || !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("got %v, %v", changed, err)
	}
}

func TestSummaryAndReset(t *testing.T) {
	r := New(quiet())
	if r.Ready() || r.Summary().Total != 0 {
		t.Fatalf("fresh reconciler should be empty")
	}
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	edit(t, r, "a", "A2")
	if st := r.Summary(); st.Total != 2 || st.Changed != 1 {
		t.Fatalf("Summary got %+v", st)
	}
	r.Reset()
	if r.Ready() || r.Current() != nil {
		t.Fatalf("Reset left state behind")
	}
}

func TestConcurrentReaders(t *testing.T) {
	r := New(quiet())
	r.SetupTwoState(jobOf(unit("a", "A"), unit("b", "B")))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tu, _ := r.Unit("a")
				tu.Q = i
				r.UpdateTranslationUnit(tu)
				return
			}
			_ = r.ChangedTUs()
			_ = r.Status()
		}(i)
	}
	wg.Wait()
	if r.Current() == nil {
		t.Fatalf("current lost")
	}
}

package reconcile_test

import (
	"testing"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/reconcile"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"NEW", "LOADED", "CHANGED", "SAVED"} {
		got, err := reconcile.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, s := range []string{"", "new", "DIRTY"} {
		if _, err := reconcile.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to reconcile.FileStatus
		want     bool
	}{
		{reconcile.StatusNew, reconcile.StatusChanged, true},
		{reconcile.StatusLoaded, reconcile.StatusChanged, true},
		{reconcile.StatusChanged, reconcile.StatusSaved, true},
		{reconcile.StatusSaved, reconcile.StatusChanged, true},
		{reconcile.StatusChanged, reconcile.StatusNew, true},
		{reconcile.StatusNew, reconcile.StatusSaved, true},
		{reconcile.StatusSaved, reconcile.StatusSaved, false},
		{reconcile.StatusSaved, reconcile.StatusLoaded, false},
		{reconcile.StatusNew, reconcile.StatusLoaded, false},
		{reconcile.StatusLoaded, reconcile.StatusNew, false},
	}
	for _, c := range cases {
		if got := reconcile.IsTransitionAllowed(c.from, c.to); got != c.want {
			t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTransitionAllowed_UnknownStatus(t *testing.T) {
	if reconcile.IsTransitionAllowed("BOGUS", reconcile.StatusChanged) {
		t.Error("unknown source status must not allow any transition")
	}
}

// ── DeriveStatus ───────────────────────────────────────────────────────────

func unit(guid, tgt string) *job.TU {
	return &job.TU{GUID: guid, NSrc: job.Parts{job.Text(guid)}, NTgt: job.Parts{job.Text(tgt)}}
}

func TestDeriveStatus(t *testing.T) {
	base := &job.Job{TUs: []*job.TU{unit("a", "A"), unit("b", "B")}}

	same := base.Clone()
	if got := reconcile.DeriveStatus(same, base, reconcile.StatusLoaded); got != reconcile.StatusLoaded {
		t.Errorf("identical snapshots: got %s", got)
	}

	edited := base.Clone()
	edited.TUs[1].NTgt = job.Parts{job.Text("B2")}
	if got := reconcile.DeriveStatus(edited, base, reconcile.StatusNew); got != reconcile.StatusChanged {
		t.Errorf("edited target: got %s", got)
	}

	annotated := base.Clone()
	annotated.TUs[0].QA = []job.Annotation{{Category: "style", Severity: "minor"}}
	if got := reconcile.DeriveStatus(annotated, base, reconcile.StatusNew); got != reconcile.StatusChanged {
		t.Errorf("review metadata change: got %s", got)
	}

	extra := base.Clone()
	extra.TUs = append(extra.TUs, unit("c", "C"))
	if got := reconcile.DeriveStatus(extra, base, reconcile.StatusNew); got != reconcile.StatusChanged {
		t.Errorf("extra unit: got %s", got)
	}
}

// ── ClassifyUnit ───────────────────────────────────────────────────────────

func TestClassifyUnit(t *testing.T) {
	orig, saved := unit("a", "Hi"), unit("a", "Hola")
	cases := []struct {
		cur  *job.TU
		want reconcile.UnitState
	}{
		{unit("a", "Hi"), reconcile.UnitOriginal},
		{unit("a", "Hola"), reconcile.UnitSaved},
		{unit("a", "Salut"), reconcile.UnitModified},
		{nil, reconcile.UnitModified},
	}
	for _, c := range cases {
		if got := reconcile.ClassifyUnit(orig, saved, c.cur); got != c.want {
			t.Errorf("ClassifyUnit(%v) = %s, want %s", c.cur, got, c.want)
		}
	}
	if got := reconcile.ClassifyUnit(nil, saved, unit("a", "Hola")); got != reconcile.UnitSaved {
		t.Errorf("unit unknown to original: got %s", got)
	}
}

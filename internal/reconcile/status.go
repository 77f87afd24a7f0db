package reconcile

import (
	"fmt"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

// FileStatus summarizes how the edit buffer relates to its baseline.
//
//	NEW ────┐            ┌──► SAVED ──► CHANGED | NEW
//	        ├──► CHANGED ┤
//	LOADED ─┘            └──► NEW (edits reverted to the original)
//
// Only LOADED compares against the saved snapshot; every other state
// compares against the original. There is no terminal state.
type FileStatus string

const (
	StatusNew     FileStatus = "NEW"
	StatusLoaded  FileStatus = "LOADED"
	StatusChanged FileStatus = "CHANGED"
	StatusSaved   FileStatus = "SAVED"
)

// validTransitions lists every allowed (from → to) pair. Saving is
// unconditional, so every state except SAVED may move to SAVED.
var validTransitions = map[FileStatus][]FileStatus{
	StatusNew:     {StatusChanged, StatusSaved},
	StatusLoaded:  {StatusChanged, StatusSaved},
	StatusChanged: {StatusSaved, StatusNew},
	StatusSaved:   {StatusChanged, StatusNew},
}

// ParseStatus converts a raw string to a FileStatus.
func ParseStatus(s string) (FileStatus, error) {
	st := FileStatus(s)
	switch st {
	case StatusNew, StatusLoaded, StatusChanged, StatusSaved:
		return st, nil
	}
	return "", fmt.Errorf("unknown file status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to FileStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DeriveStatus returns CHANGED when any unit of current differs from its
// baseline counterpart in target or review metadata, or has none; otherwise
// it returns clean.
func DeriveStatus(current, baseline *job.Job, clean FileStatus) FileStatus {
	if Diverges(current, baseline) {
		return StatusChanged
	}
	return clean
}

// Diverges reports whether current differs from baseline in any unit.
func Diverges(current, baseline *job.Job) bool {
	if current == nil || baseline == nil {
		return current != baseline
	}
	if len(current.TUs) != len(baseline.TUs) {
		return true
	}
	ref := baseline.Index()
	for _, tu := range current.TUs {
		b, ok := ref[tu.GUID]
		if !ok || !tu.ContentEqual(b) {
			return true
		}
	}
	return false
}

// UnitState is the per-unit visual classification.
type UnitState string

const (
	UnitOriginal UnitState = "original"
	UnitSaved    UnitState = "saved"
	UnitModified UnitState = "modified"
)

// ClassifyUnit compares one unit across the triad. A unit equal to the
// original wins over one equal to the saved copy. Nil snapshots never match.
func ClassifyUnit(original, saved, current *job.TU) UnitState {
	switch {
	case current == nil:
		return UnitModified
	case original != nil && current.NTgt.Equal(original.NTgt):
		return UnitOriginal
	case saved != nil && current.NTgt.Equal(saved.NTgt):
		return UnitSaved
	default:
		return UnitModified
	}
}

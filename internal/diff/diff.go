// Package diff renders target-text changes as classic unified patches and
// measures word-level edit distance. Both are built on
// github.com/pmezard/go-difflib/difflib.
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/textutil"
)

// Options controls patch generation behavior.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a minimal placeholder patch is returned and oversize=true.
	// 0 means "no limit".
	MaxBytes int

	// Context controls the number of context lines in unified hunks.
	// If 0, default to 3.
	Context int
}

// Unified produces a unified patch for a↦b.
// Returns the patch body and a flag indicating it was omitted due to size.
// Identical inputs yield an empty body.
func Unified(aName, bName, a, b string, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && (len(a)+len(b)) > opt.MaxBytes {
		return omitted(aName, bName), true
	}
	a = textutil.EnsureTrailingLF(textutil.NormalizeLF(a))
	b = textutil.EnsureTrailingLF(textutil.NormalizeLF(b))
	if a == b {
		return "", false
	}

	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(a),
		B:        splitLinesKeepNL(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return omitted(aName, bName), false
	}
	return s, false
}

// Target diffs the plain-text targets of the same unit in two snapshots.
// A nil before means the unit did not exist there.
func Target(before, after *job.TU, opt Options) (string, bool) {
	var a, b string
	aName := "/dev/null"
	if before != nil {
		a = before.NTgt.PlainText()
		aName = "a/" + before.GUID
	}
	if after != nil {
		b = after.NTgt.PlainText()
	}
	bName := "b/"
	switch {
	case after != nil:
		bName += after.GUID
	case before != nil:
		bName += before.GUID
	}
	return Unified(aName, bName, a, b, opt)
}

// Words returns the word-level edit distance between a and b: the number of
// tokens replaced, deleted or inserted to turn a into b.
func Words(a, b []string) int {
	m := difflib.NewMatcher(a, b)
	n := 0
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			n += max(op.I2-op.I1, op.J2-op.J1)
		case 'd':
			n += op.I2 - op.I1
		case 'i':
			n += op.J2 - op.J1
		}
	}
	return n
}

// splitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}

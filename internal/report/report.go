// Package report turns a reviewed job into a spreadsheet for reviewers and
// vendors: the changed units, a summary with the quality score, and the
// unified diff of every changed target.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/l10nmonster/lqa-boss-sub001/internal/delta"
	"github.com/l10nmonster/lqa-boss-sub001/internal/diff"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/meta"
	"github.com/l10nmonster/lqa-boss-sub001/internal/quality"
	"github.com/l10nmonster/lqa-boss-sub001/internal/reconcile"
	"github.com/l10nmonster/lqa-boss-sub001/internal/textutil"
)

// Input is what Build reads. Saved may be nil; Model may be nil.
type Input struct {
	Name        string
	Original    *job.Job
	Saved       *job.Job
	Current     *job.Job
	Status      reconcile.FileStatus
	Model       *quality.Model
	DiffContext int
	Now         time.Time
}

// Row is one changed unit.
type Row struct {
	GUID        string
	Source      string
	Original    string
	Current     string
	State       reconcile.UnitState
	TER         float64
	Annotations string
	Diff        string
}

// Report is the built, format-independent review report.
type Report struct {
	Name       string
	SourceLang string
	TargetLang string
	Status     reconcile.FileStatus
	Generated  time.Time
	Build      meta.Info
	Stats      delta.Stats
	Quality    *quality.Result
	Rows       []Row
}

// Build collects one row per unit whose target or review metadata differs
// from the original.
func Build(in Input) (*Report, error) {
	if in.Original == nil || in.Current == nil {
		return nil, fmt.Errorf("report: original and current are required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	r := &Report{
		Name:       in.Name,
		SourceLang: in.Current.SourceLang,
		TargetLang: in.Current.TargetLang,
		Status:     in.Status,
		Generated:  in.Now.UTC(),
		Build:      meta.Detect(),
		Stats:      delta.Summary(in.Original, in.Current),
	}
	if in.Model != nil {
		res, err := quality.Score(in.Model, in.Current)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		r.Quality = &res
	}

	orig := in.Original.Index()
	var saved map[string]*job.TU
	if in.Saved != nil {
		saved = in.Saved.Index()
	}
	ter := quality.TER{}
	for _, cur := range delta.Persistable(in.Original, in.Current) {
		o := orig[cur.GUID]
		row := Row{
			GUID:        cur.GUID,
			Source:      cur.NSrc.PlainText(),
			Current:     cur.NTgt.PlainText(),
			State:       reconcile.ClassifyUnit(o, saved[cur.GUID], cur),
			Annotations: annotations(cur.QA),
		}
		mi := quality.Input{Source: cur.NSrc, Current: cur.NTgt, QA: cur.QA}
		if o != nil {
			row.Original = o.NTgt.PlainText()
			mi.Original = o.NTgt
		}
		row.TER = ter.Compute(mi)
		row.Diff, _ = diff.Target(o, cur, diff.Options{Context: in.DiffContext, MaxBytes: 32 << 10})
		r.Rows = append(r.Rows, row)
	}
	return r, nil
}

func annotations(qa []job.Annotation) string {
	parts := make([]string, 0, len(qa))
	for _, a := range qa {
		s := a.Category + "/" + a.Severity
		if a.Comment != "" {
			s += ": " + a.Comment
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

const (
	changesSheet = "Changes"
	summarySheet = "Summary"
	diffsSheet   = "Diffs"
)

// cellLimit is the longest text a spreadsheet cell holds.
const cellLimit = 32000

// WriteXLSX renders r as a workbook with Changes, Summary and Diffs sheets.
func WriteXLSX(r *Report, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", changesSheet); err != nil {
		return nil, err
	}
	for _, name := range []string{summarySheet, diffsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	idx, _ := f.GetSheetIndex(changesSheet)
	f.SetActiveSheet(idx)

	writeRow(f, changesSheet, 1, "GUID", "Source", "Original Target", "Current Target", "State", "TER", "Annotations")
	for i, row := range r.Rows {
		writeRow(f, changesSheet, i+2,
			row.GUID, clip(row.Source), clip(row.Original), clip(row.Current),
			string(row.State), row.TER, clip(row.Annotations))
	}
	_ = f.SetColWidth(changesSheet, "A", "A", 24)
	_ = f.SetColWidth(changesSheet, "B", "D", 48)
	_ = f.SetColWidth(changesSheet, "E", "F", 10)
	_ = f.SetColWidth(changesSheet, "G", "G", 40)

	summary := [][]any{
		{"Job", r.Name},
		{"Language Pair", r.SourceLang + " → " + r.TargetLang},
		{"Status", string(r.Status)},
		{"Units", r.Stats.Total},
		{"Changed Units", r.Stats.Changed},
		{"Pending Candidates", r.Stats.PendingCandidates},
		{"Annotated Units", r.Stats.Annotated},
	}
	if q := r.Quality; q != nil {
		summary = append(summary,
			[]any{"Source Words", q.Words},
			[]any{"Errors", q.Errors},
			[]any{"EPT", q.EPT},
			[]any{"Score", q.Score},
			[]any{"Pass", q.Pass},
		)
	}
	summary = append(summary,
		[]any{"Generated", r.Generated.Format(time.RFC3339)},
		[]any{"Generator", r.Build.String()},
	)
	for i, kv := range summary {
		writeRow(f, summarySheet, i+1, kv...)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	writeRow(f, diffsSheet, 1, "GUID", "Diff")
	n := 2
	for _, row := range r.Rows {
		if row.Diff == "" {
			continue
		}
		writeRow(f, diffsSheet, n, row.GUID, clip(row.Diff))
		n++
	}
	_ = f.SetColWidth(diffsSheet, "A", "A", 24)
	_ = f.SetColWidth(diffsSheet, "B", "B", 100)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("report.xlsx.ok", "rows", len(r.Rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func clip(s string) string { return textutil.Clip(s, cellLimit) }

package quality

import (
	"github.com/l10nmonster/lqa-boss-sub001/internal/diff"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/textutil"
)

// Input is what a Metric sees for one unit.
type Input struct {
	Source   job.Parts
	Original job.Parts // target before review
	Current  job.Parts // target after review
	QA       []job.Annotation
}

// Metric computes one per-unit number.
type Metric interface {
	Name() string
	Compute(in Input) float64
}

// TER is the translation edit rate: word edits from Original to Current
// divided by the word count of Original.
type TER struct{}

func (TER) Name() string { return "TER" }

func (TER) Compute(in Input) float64 {
	a := textutil.Words(in.Original.PlainText())
	b := textutil.Words(in.Current.PlainText())
	edits := diff.Words(a, b)
	if edits == 0 {
		return 0
	}
	return float64(edits) / float64(max(1, len(a)))
}

// EPTMetric weighs a unit's annotations with the model severities and
// scales the penalty by the unit's source words.
type EPTMetric struct {
	Model *Model
}

func (EPTMetric) Name() string { return "EPT" }

func (e EPTMetric) Compute(in Input) float64 {
	if e.Model == nil {
		return 0
	}
	var penalty float64
	for _, a := range in.QA {
		if w, ok := e.Model.Weight(a.Severity); ok {
			penalty += w
		}
	}
	return EPT(penalty, textutil.WordCount(in.Source.PlainText()))
}

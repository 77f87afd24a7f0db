package quality

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/textutil"
)

const defaultScoreExpr = "max(0, 100 - ept)"

// Result summarizes the findings of a job.
type Result struct {
	Words      int            // source words across all units
	Errors     int            // annotations counted
	Penalty    float64        // sum of severity weights
	EPT        float64        // penalty per thousand source words
	BySeverity map[string]int // annotation count per severity id
	Unknown    int            // annotations whose severity is not in the model
	Score      float64
	Pass       bool
}

// Score evaluates every annotation in j against m.
func Score(m *Model, j *job.Job) (Result, error) {
	res := Result{BySeverity: map[string]int{}}
	for _, tu := range j.TUs {
		res.Words += textutil.WordCount(tu.NSrc.PlainText())
		for _, a := range tu.QA {
			w, ok := m.Weight(a.Severity)
			if !ok {
				res.Unknown++
				continue
			}
			res.Errors++
			res.Penalty += w
			res.BySeverity[a.Severity]++
		}
	}
	res.EPT = EPT(res.Penalty, res.Words)

	src := m.ScoreExpr
	if src == "" {
		src = defaultScoreExpr
	}
	program, err := compileScore(src)
	if err != nil {
		return res, fmt.Errorf("compile score: %w", err)
	}
	res.Score, err = runScore(program, res)
	if err != nil {
		return res, err
	}
	res.Pass = m.PassThreshold <= 0 || res.Score >= m.PassThreshold
	return res, nil
}

// EPT converts a penalty into errors per thousand words. Zero words yields 0.
func EPT(penalty float64, words int) float64 {
	if words <= 0 {
		return 0
	}
	return penalty * 1000 / float64(words)
}

func scoreEnv(r Result) map[string]any {
	by := make(map[string]any, len(r.BySeverity))
	for k, v := range r.BySeverity {
		by[k] = v
	}
	return map[string]any{
		"ept":        r.EPT,
		"words":      r.Words,
		"errors":     r.Errors,
		"penalty":    r.Penalty,
		"bySeverity": by,
	}
}

func compileScore(src string) (*exprvm.Program, error) {
	return exprlang.Compile(src, exprlang.Env(scoreEnv(Result{})))
}

func runScore(program *exprvm.Program, r Result) (float64, error) {
	out, err := exprlang.Run(program, scoreEnv(r))
	if err != nil {
		return 0, fmt.Errorf("run score: %w", err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("score expression returned %T, want number", out)
	}
}

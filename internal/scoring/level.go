package scoring

import (
	"fmt"
	"math"
	"strings"
)

const (
	// QuickSolveMinutes is the time under which level 2+ submissions earn a bonus.
	QuickSolveMinutes = 30.0
	// ConciseLineLimit is the non-blank line count at or under which level 3+ submissions earn a bonus.
	ConciseLineLimit = 20
	// FastRuntimeSeconds is the runtime under which level 4+ submissions earn a bonus.
	FastRuntimeSeconds = 0.10
)

const maxLevel = 5

// ExecutionResult is the part of a remote run the scoring engine needs.
type ExecutionResult struct {
	// RuntimeSeconds is zero when the run was skipped or its time is unknown.
	RuntimeSeconds float64
	// Stdout is the decoded program output, used in exact mode.
	Stdout string
}

// Details records the measured inputs behind a score.
type Details struct {
	Correctness float64 `json:"correctness"`
	TimeTaken   float64 `json:"time_taken"`
	LineCount   int     `json:"line_count"`
	Runtime     float64 `json:"runtime"`
	TotalErrors int     `json:"total_errors"`
	TotalRuns   int     `json:"total_runs"`
}

// EvaluationResult is the score of one submission at a given level.
type EvaluationResult struct {
	Level      int     `json:"level"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
	Details    Details `json:"details"`

	passed       bool
	lineBonus    bool
	runtimeBonus bool
	errorBonus   bool
}

// EvaluateLevel scores a submission. Score and MaxScore are in level units:
// a passing correctness check is worth one point and each criterion unlocked
// by the level is worth one more, so MaxScore equals the level.
func EvaluateLevel(level int, exec ExecutionResult, code string, timeTakenMinutes float64, errorRuns, totalRuns int, expected string, mode Mode) (EvaluationResult, error) {
	if level < 1 || level > maxLevel {
		return EvaluationResult{}, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if err := validateMeasurements(exec.RuntimeSeconds, timeTakenMinutes, errorRuns, totalRuns); err != nil {
		return EvaluationResult{}, err
	}

	compared := code
	if mode == ModeExact {
		compared = exec.Stdout
	}
	correctness, err := EvaluateCorrectness(mode, compared, expected)
	if err != nil {
		return EvaluationResult{}, err
	}

	res := EvaluationResult{
		Level:    level,
		MaxScore: level,
		Details: Details{
			Correctness: correctness,
			TimeTaken:   timeTakenMinutes,
			LineCount:   CountLines(code),
			Runtime:     exec.RuntimeSeconds,
			TotalErrors: errorRuns,
			TotalRuns:   totalRuns,
		},
	}
	if Passed(mode, correctness) {
		res.passed = true
		res.Score++
	}
	if level >= 2 && timeTakenMinutes < QuickSolveMinutes {
		res.Score++
	}
	if level >= 3 && res.Details.LineCount <= ConciseLineLimit {
		res.lineBonus = true
		res.Score++
	}
	if level >= 4 && exec.RuntimeSeconds < FastRuntimeSeconds {
		res.runtimeBonus = true
		res.Score++
	}
	if level == 5 && errorRuns == 0 && totalRuns == 1 {
		res.errorBonus = true
		res.Score++
	}
	res.Percentage = float64(res.Score) / float64(res.MaxScore) * 100
	return res, nil
}

func validateMeasurements(runtime, timeTaken float64, errorRuns, totalRuns int) error {
	switch {
	case math.IsNaN(runtime) || math.IsInf(runtime, 0) || runtime < 0:
		return fmt.Errorf("%w: runtime %v", ErrInvalidInput, runtime)
	case math.IsNaN(timeTaken) || math.IsInf(timeTaken, 0) || timeTaken < 0:
		return fmt.Errorf("%w: time taken %v", ErrInvalidInput, timeTaken)
	case totalRuns < 0:
		return fmt.Errorf("%w: total runs %d", ErrInvalidInput, totalRuns)
	case errorRuns < 0 || errorRuns > totalRuns:
		return fmt.Errorf("%w: error runs %d of %d", ErrInvalidInput, errorRuns, totalRuns)
	}
	return nil
}

// CountLines returns the number of non-blank lines in code.
func CountLines(code string) int {
	n := 0
	for line := range strings.SplitSeq(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// Points is what the submission adds to the candidate's LevelState: the
// percentage on a 0-10 scale, rounded to the nearest point.
func (r EvaluationResult) Points() int {
	return int(math.Round(r.Percentage / 10))
}

// QualityScore is the submission's score on the 0-10 scale used for accuracy.
func (r EvaluationResult) QualityScore() float64 {
	return r.Percentage / 10
}

// EvaluationRecord is the persisted shape of a scored submission. Metrics the
// level does not unlock stay nil.
type EvaluationRecord struct {
	Correctness      float64  `json:"correctness"`
	LineCodeScore    *float64 `json:"line_code,omitempty"`
	TimeTakenMinutes *float64 `json:"time_taken,omitempty"`
	RuntimeScore     *float64 `json:"runtime,omitempty"`
	ErrorScore       *float64 `json:"error_made,omitempty"`
}

// Record builds the EvaluationRecord for the result. Correctness and the
// sub-scores are 10 when the criterion was met and 0 otherwise, whatever the
// correctness mode.
func (r EvaluationResult) Record() EvaluationRecord {
	rec := EvaluationRecord{Correctness: flag(r.passed)}
	if r.Level >= 2 {
		rec.TimeTakenMinutes = ptr(r.Details.TimeTaken)
	}
	if r.Level >= 3 {
		rec.LineCodeScore = ptr(flag(r.lineBonus))
	}
	if r.Level >= 4 {
		rec.RuntimeScore = ptr(flag(r.runtimeBonus))
	}
	if r.Level == 5 {
		rec.ErrorScore = ptr(flag(r.errorBonus))
	}
	return rec
}

func flag(ok bool) float64 {
	if ok {
		return 10
	}
	return 0
}

func ptr(v float64) *float64 { return &v }

package scoring

import (
	"math"
	"testing"
)

func TestSummarizeMetrics(t *testing.T) {
	records := []EvaluationRecord{
		{Correctness: 10},
		{Correctness: 0, TimeTakenMinutes: fptr(20)},
		{Correctness: 10, TimeTakenMinutes: fptr(10), LineCodeScore: fptr(10), RuntimeScore: fptr(0), ErrorScore: fptr(10)},
	}
	got := SummarizeMetrics(records)

	if got.Evaluations != 3 {
		t.Errorf("Evaluations = %d, want 3", got.Evaluations)
	}
	if want := 200.0 / 3; math.Abs(got.Accuracy-want) > 1e-9 {
		t.Errorf("Accuracy = %v, want %v", got.Accuracy, want)
	}
	if got.AvgMinutes != 15 {
		t.Errorf("AvgMinutes = %v, want 15", got.AvgMinutes)
	}
	if got.Style != 100 {
		t.Errorf("Style = %v, want 100", got.Style)
	}
	if got.Efficiency != 0 {
		t.Errorf("Efficiency = %v, want 0", got.Efficiency)
	}
	if got.ErrorFree != 100 {
		t.Errorf("ErrorFree = %v, want 100", got.ErrorFree)
	}
	if got.TotalPoints != 40 {
		t.Errorf("TotalPoints = %v, want 40", got.TotalPoints)
	}
}

func TestSummarizeMetricsEmpty(t *testing.T) {
	got := SummarizeMetrics(nil)
	if got != (MetricSummary{}) {
		t.Errorf("expected zero summary, got %+v", got)
	}
}

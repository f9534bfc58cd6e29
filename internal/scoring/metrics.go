package scoring

// MetricSummary holds a candidate's average result metrics on a 0-100 scale.
// Each average only counts evaluations where the metric was recorded.
type MetricSummary struct {
	Accuracy    float64 `json:"accuracy"`
	Efficiency  float64 `json:"efficiency"`
	Style       float64 `json:"style"`
	ErrorFree   float64 `json:"error_free"`
	AvgMinutes  float64 `json:"avg_minutes"`
	Evaluations int     `json:"evaluations"`
	TotalPoints float64 `json:"total_points"`
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// SummarizeMetrics averages evaluation records. Correctness, line code,
// runtime and error sub-scores are 0-10 and scaled by ten; time is averaged in minutes.
func SummarizeMetrics(records []EvaluationRecord) MetricSummary {
	var correctness, style, efficiency, errorFree, minutes mean
	var total float64
	for _, r := range records {
		c := r.Correctness
		correctness.add(&c)
		style.add(r.LineCodeScore)
		efficiency.add(r.RuntimeScore)
		errorFree.add(r.ErrorScore)
		minutes.add(r.TimeTakenMinutes)
		total += c + deref(r.LineCodeScore) + deref(r.RuntimeScore) + deref(r.ErrorScore)
	}
	return MetricSummary{
		Accuracy:    clampPercent(correctness.value() * 10),
		Efficiency:  clampPercent(efficiency.value() * 10),
		Style:       clampPercent(style.value() * 10),
		ErrorFree:   clampPercent(errorFree.value() * 10),
		AvgMinutes:  minutes.value(),
		Evaluations: len(records),
		TotalPoints: total,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

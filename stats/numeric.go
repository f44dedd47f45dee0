package stats

import (
	"fmt"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/models"
)

// LikertLabel resolves the label of scale value n: labels are 1-indexed into
// options, and anything outside 1..min(points, len(options)) is "Scale n".
func LikertLabel(options []string, points, n int) string {
	limit := len(options)
	if points < limit {
		limit = points
	}
	if n >= 1 && n <= limit && options[n-1] != "" {
		return options[n-1]
	}
	return fmt.Sprintf("Scale %d", n)
}

func likertLabels(spec *answer.Spec) []string {
	if l := spec.Settings.Likert; l != nil && len(l.Options) > 0 {
		return l.Options
	}
	labels := make([]string, 0, len(spec.Question.Options))
	for _, o := range spec.Question.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

func formatLikert(spec *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	points := spec.Settings.Likert.ScalePoints()
	labels := likertLabels(spec)

	s := &LikertSummary{Scale: make([]ScaleCount, points)}
	for i := range s.Scale {
		s.Scale[i] = ScaleCount{Value: i + 1, Label: LikertLabel(labels, points, i+1)}
	}

	var (
		sum      float64
		bucketed int
	)
	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		f, ok := answer.Number(a)
		if !ok {
			continue
		}
		s.Responses++
		sum += f
		n := int(f)
		if float64(n) == f && n >= 1 && n <= points {
			s.Scale[n-1].Count++
			bucketed++
		}
	}
	for i := range s.Scale {
		s.Scale[i].Percent = percent(s.Scale[i].Count, bucketed)
	}
	if s.Responses > 0 {
		s.Mean = round2(sum / float64(s.Responses))
	}
	return s, nil
}

func formatNumeric(_ *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	values := make([]float64, 0, len(answers))
	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		if f, ok := answer.Number(a); ok {
			values = append(values, f)
		}
	}
	return Numbers(values), nil
}

// Numbers computes count, sum, mean, median, min, max and a value frequency
// table sorted by value.
func Numbers(values []float64) *NumericSummary {
	s := &NumericSummary{Distribution: []ValueCount{}}
	if len(values) == 0 {
		return s
	}

	sorted := append(mstats.Float64Data(nil), values...)
	sort.Float64s(sorted)
	s.Count = sorted.Len()
	s.Min, _ = mstats.Min(sorted)
	s.Max, _ = mstats.Max(sorted)
	s.Sum, _ = mstats.Sum(sorted)
	s.Mean, _ = mstats.Mean(sorted)
	s.Median, _ = mstats.Median(sorted)

	for _, v := range sorted {
		if n := len(s.Distribution); n > 0 && s.Distribution[n-1].Value == v {
			s.Distribution[n-1].Count++
		} else {
			s.Distribution = append(s.Distribution, ValueCount{Value: v, Count: 1})
		}
	}
	return s
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

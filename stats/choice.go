package stats

import (
	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/models"
)

func formatYesNo(_ *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	s := &YesNoSummary{}
	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		b, ok := answer.ParseYesNo(a.AnswerValue)
		if !ok {
			continue
		}
		if b {
			s.Yes++
		} else {
			s.No++
		}
	}
	s.Total = s.Yes + s.No
	s.YesPercent = percent(s.Yes, s.Total)
	s.NoPercent = percent(s.No, s.Total)
	return s, nil
}

func formatChoice(spec *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	s := &ChoiceSummary{Multiple: spec.Question.Type == models.TypeCheckbox}

	counts := make(map[string]int)
	order := append([]string(nil), spec.OptionValues()...)
	known := make(map[string]bool, len(order))
	for _, v := range order {
		known[v] = true
	}

	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}

		var (
			values []string
			other  string
			err    error
		)
		if s.Multiple {
			values, other, err = answer.Choices(a)
		} else {
			var v string
			v, other, err = answer.Choice(a)
			values = []string{v}
		}
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}

		s.Respondents++
		for _, v := range values {
			if !known[v] {
				known[v] = true
				order = append(order, v)
			}
			counts[v]++
			s.TotalSelections++
		}
		if other != "" {
			s.OtherTexts = append(s.OtherTexts, other)
		}
	}

	s.Options = make([]OptionCount, 0, len(order))
	for _, v := range order {
		label := spec.Label(v)
		if v == models.OtherValue && !spec.HasOption(v) {
			label = "Other"
		}
		s.Options = append(s.Options, OptionCount{
			Value:   v,
			Label:   label,
			Count:   counts[v],
			Percent: percent(counts[v], s.TotalSelections),
		})
	}
	return s, nil
}

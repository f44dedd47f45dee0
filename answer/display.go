package answer

import (
	"fmt"
	"strings"

	"github.com/vnkhanh/tracer-study/models"
)

// Display renders an answer as spreadsheet cell text. Decoding problems fall
// back to RawText instead of failing the export.
func (s *Spec) Display(a *models.AnswerDetail) string {
	if a == nil || IsSkipped(a) {
		return ""
	}

	switch s.Question.Type {
	case models.TypeRadio, models.TypeDropdown:
		v, other, err := Choice(a)
		if err != nil {
			return RawText(a)
		}
		return s.choiceText(v, other)

	case models.TypeCheckbox:
		vals, other, err := Choices(a)
		if err != nil {
			return RawText(a)
		}
		parts := make([]string, 0, len(vals))
		for _, v := range vals {
			parts = append(parts, s.choiceText(v, other))
		}
		return strings.Join(parts, ", ")

	case models.TypeYesNo:
		if b, ok := ParseYesNo(a.AnswerValue); ok {
			if b {
				return "Yes"
			}
			return "No"
		}

	case models.TypeMatrix:
		rows, err := Matrix(a)
		if err != nil || rows == nil {
			return RawText(a)
		}
		var configured []string
		if s.Settings.Matrix != nil {
			configured = s.Settings.Matrix.Rows
		}
		return MatrixText(OrderedRows(configured, rows), rows)

	case models.TypeRanking:
		items, err := Ranking(a)
		if err != nil {
			return RawText(a)
		}
		parts := make([]string, 0, len(items))
		for i, it := range items {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, s.Label(it)))
		}
		return strings.Join(parts, ", ")

	case models.TypeFile:
		files, err := Files(a)
		if err != nil {
			return RawText(a)
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}
		return strings.Join(names, ", ")
	}

	return RawText(a)
}

func (s *Spec) choiceText(v, other string) string {
	if v == models.OtherValue {
		if other != "" {
			return other
		}
		return "Other"
	}
	return s.Label(v)
}

package stats

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/models"
)

func formatMatrix(spec *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	m := spec.Settings.Matrix
	if m == nil {
		m = &models.MatrixSettings{}
	}
	s := &MatrixSummary{MatrixType: models.MatrixRadio, Entries: []string{}}
	if m.IsCheckbox() {
		s.MatrixType = models.MatrixCheckbox
	}

	counts := make(map[string]map[string]int)
	rowRespondents := make(map[string]int)
	rowSeen := toSet(m.Rows)
	colSeen := toSet(m.Columns)
	var extraRows, extraCols []string

	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		rows, err := answer.Matrix(a)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		s.Respondents++

		for row, cols := range rows {
			if !rowSeen[row] {
				rowSeen[row] = true
				extraRows = append(extraRows, row)
			}
			if counts[row] == nil {
				counts[row] = make(map[string]int)
			}
			rowRespondents[row]++
			for _, c := range cols {
				if !colSeen[c] {
					colSeen[c] = true
					extraCols = append(extraCols, c)
				}
				counts[row][c]++
			}
		}
		s.Entries = append(s.Entries, answer.MatrixText(answer.OrderedRows(m.Rows, rows), rows))
	}

	// unconfigured rows and columns follow the configured ones, sorted
	sort.Strings(extraRows)
	sort.Strings(extraCols)
	rowOrder := append(append([]string(nil), m.Rows...), extraRows...)
	colOrder := append(append([]string(nil), m.Columns...), extraCols...)

	s.Columns = colOrder
	s.Rows = make([]MatrixRow, 0, len(rowOrder))
	for _, r := range rowOrder {
		row := MatrixRow{Row: r, Respondents: rowRespondents[r], Cells: make([]CellCount, 0, len(colOrder))}
		for _, c := range colOrder {
			n := counts[r][c]
			row.Cells = append(row.Cells, CellCount{Column: c, Count: n, Percent: percent(n, row.Respondents)})
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func formatRanking(spec *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	order := append([]string(nil), spec.OptionValues()...)
	seen := toSet(order)
	positions := make(map[string]int)
	appearances := make(map[string]int)
	first := make(map[string]int)

	s := &RankingSummary{}
	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		items, err := answer.Ranking(a)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}
		s.Respondents++
		for pos, it := range items {
			if !seen[it] {
				seen[it] = true
				order = append(order, it)
			}
			positions[it] += pos + 1
			appearances[it]++
			if pos == 0 {
				first[it]++
			}
		}
	}

	s.Items = make([]RankedItem, 0, len(order))
	for _, v := range order {
		it := RankedItem{Value: v, Label: spec.Label(v), FirstPlace: first[v], Appearances: appearances[v]}
		if it.Appearances > 0 {
			it.AveragePosition = round2(float64(positions[v]) / float64(it.Appearances))
		}
		s.Items = append(s.Items, it)
	}
	// unranked items sink to the bottom
	sort.SliceStable(s.Items, func(i, j int) bool {
		a, b := s.Items[i], s.Items[j]
		if (a.Appearances == 0) != (b.Appearances == 0) {
			return b.Appearances == 0
		}
		return a.AveragePosition < b.AveragePosition
	})
	return s, nil
}

func fileType(f answer.FileRef) string {
	if t := strings.TrimSpace(f.Type); t != "" {
		return strings.ToLower(t)
	}
	if ext := strings.TrimPrefix(filepath.Ext(f.Name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "unknown"
}

func formatFiles(_ *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	s := &FileSummary{Responses: []FileResponse{}, TypeDistribution: []TypeCount{}}
	types := make(map[string]int)

	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		files, err := answer.Files(a)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		s.Responses = append(s.Responses, FileResponse{ResponseID: a.ResponseID, Files: files})
		for _, f := range files {
			types[fileType(f)]++
			s.TotalFiles++
		}
	}

	for t, n := range types {
		s.TypeDistribution = append(s.TypeDistribution, TypeCount{Type: t, Count: n, Percent: percent(n, s.TotalFiles)})
	}
	sort.Slice(s.TypeDistribution, func(i, j int) bool {
		a, b := s.TypeDistribution[i], s.TypeDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})
	if len(s.Responses) > 0 {
		s.AveragePerResponse = round2(float64(s.TotalFiles) / float64(len(s.Responses)))
	}
	return s, nil
}

func formatText(_ *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	s := &TextSummary{Values: []TextEntry{}}
	total := 0
	for i := range answers {
		a := &answers[i]
		if answer.IsSkipped(a) {
			continue
		}
		v := strings.TrimSpace(a.AnswerValue)
		if v == "" {
			v = answer.RawText(a)
		}
		n := utf8.RuneCountInString(v)
		if s.Count == 0 || n < s.MinLength {
			s.MinLength = n
		}
		if n > s.MaxLength {
			s.MaxLength = n
		}
		total += n
		s.Count++
		s.Values = append(s.Values, TextEntry{ResponseID: a.ResponseID, Value: v})
	}
	if s.Count > 0 {
		s.AverageLength = round2(float64(total) / float64(s.Count))
	}
	return s, nil
}

func formatRaw(_ *answer.Spec, answers []models.AnswerDetail) (Summary, error) {
	s := &RawSummary{Values: []TextEntry{}}
	for i := range answers {
		a := &answers[i]
		if v := answer.RawText(a); v != "" {
			s.Values = append(s.Values, TextEntry{ResponseID: a.ResponseID, Value: v})
		}
	}
	return s, nil
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, v := range list {
		m[v] = true
	}
	return m
}

package exporter

import (
	"fmt"
	"strings"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/stats"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	responsesSheet = "Responses"
	maxSheetName   = 31
)

var responseColumns = []string{"Response ID", "Respondent", "Created", "Completed", "IP Address"}

// sheetKinds are the summary kinds that get a sheet of their own.
var sheetKinds = map[stats.Kind]bool{
	stats.KindYesNo:       true,
	stats.KindMultiChoice: true,
	stats.KindLikert:      true,
	stats.KindNumeric:     true,
}

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")", "'", "",
)

// SheetName is "Q{id} {title}" with characters excel rejects removed. Names
// that would exceed 31 characters become "Q{id}".
func SheetName(questionID uint, title string) string {
	clean := strings.Join(strings.Fields(sheetNameReplacer.Replace(title)), " ")
	name := fmt.Sprintf("Q%d %s", questionID, clean)
	name = strings.TrimSpace(name)
	if len([]rune(name)) > maxSheetName {
		return fmt.Sprintf("Q%d", questionID)
	}
	return name
}

type workbook struct {
	f      *excelize.File
	header int
}

func (w *workbook) row(sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(sheet, cell, &values)
}

func (w *workbook) headerRow(sheet string, row int, values ...any) error {
	if err := w.row(sheet, row, values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	return w.f.SetCellStyle(sheet, first, last, w.header)
}

// RenderWorkbook builds the xlsx: a summary sheet, one row per response, and
// one sheet per question whose statistics fit a table.
func RenderWorkbook(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	w := &workbook{f: f, header: header}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := w.summary(r); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if _, err := f.NewSheet(responsesSheet); err != nil {
		return nil, err
	}
	if err := w.responses(r); err != nil {
		return nil, fmt.Errorf("responses sheet: %w", err)
	}
	if err := w.questionSheets(r); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *workbook) summary(r *Report) error {
	st := r.stats()
	q := r.Questionnaire
	rows := [][]any{
		{"Title", r.title()},
	}
	if q != nil {
		rows = append(rows,
			[]any{"Slug", q.SlugValue()},
			[]any{"Status", string(q.Status)},
			[]any{"Description", q.Description},
			[]any{"Start date", formatTime(q.StartDate)},
			[]any{"End date", formatTime(q.EndDate)},
		)
	}
	rows = append(rows,
		[]any{"Generated at", formatTime(&r.GeneratedAt)},
		[]any{"Questions", len(r.answerable())},
		[]any{"Total responses", st.TotalResponses},
		[]any{"Completed responses", st.CompletedResponses},
		[]any{"Completion rate (%)", stats.Percent(st.CompletionRate)},
		[]any{"Average completion (seconds)", st.AverageCompletionSeconds},
	)

	if err := w.headerRow(summarySheet, 1, "Field", "Value"); err != nil {
		return err
	}
	for i, row := range rows {
		if err := w.row(summarySheet, i+2, row...); err != nil {
			return err
		}
	}
	return w.f.SetColWidth(summarySheet, "A", "A", 30)
}

func (w *workbook) responses(r *Report) error {
	refs := r.answerable()
	specs := make([]*answer.Spec, len(refs))
	header := make([]any, 0, len(responseColumns)+len(refs))
	for _, c := range responseColumns {
		header = append(header, c)
	}
	for i, ref := range refs {
		specs[i], _ = answer.NewSpec(ref.question)
		header = append(header, ref.question.Title)
	}
	if err := w.headerRow(responsesSheet, 1, header...); err != nil {
		return err
	}

	for i := range r.Responses {
		resp := &r.Responses[i]
		byQuestion := make(map[uint]int, len(resp.Answers))
		for j := range resp.Answers {
			byQuestion[resp.Answers[j].QuestionID] = j
		}

		row := []any{resp.ID, resp.Respondent(), formatTime(&resp.CreatedAt), formatTime(resp.CompletedAt), resp.IPAddress}
		for k, ref := range refs {
			cell := ""
			if j, ok := byQuestion[ref.question.ID]; ok {
				cell = specs[k].Display(&resp.Answers[j])
			}
			row = append(row, cell)
		}
		if err := w.row(responsesSheet, i+2, row...); err != nil {
			return err
		}
	}

	return w.f.SetPanes(responsesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *workbook) questionSheets(r *Report) error {
	used := map[string]bool{summarySheet: true, responsesSheet: true}
	for _, qs := range r.Summaries {
		if qs.Summary == nil || !sheetKinds[qs.Summary.Kind()] {
			continue
		}
		name := SheetName(qs.QuestionID, qs.Title)
		if used[name] {
			name = fmt.Sprintf("Q%d", qs.QuestionID)
		}
		used[name] = true

		if _, err := w.f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := w.row(name, 1, qs.Title); err != nil {
			return err
		}
		if err := w.questionTable(name, qs.Summary); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := w.f.SetColWidth(name, "A", "B", 28); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) questionTable(sheet string, s stats.Summary) error {
	next := 3
	add := func(values ...any) error {
		err := w.row(sheet, next, values...)
		next++
		return err
	}
	head := func(values ...any) error {
		err := w.headerRow(sheet, next, values...)
		next++
		return err
	}

	var err error
	switch v := s.(type) {
	case *stats.YesNoSummary:
		err = firstErr(
			head("Answer", "Count", "Percent"),
			add("Yes", v.Yes, v.YesPercent),
			add("No", v.No, v.NoPercent),
			add("Total", v.Total, ""),
		)
	case *stats.ChoiceSummary:
		err = head("Option", "Count", "Percent")
		for _, o := range v.Options {
			err = firstErr(err, add(o.Label, o.Count, o.Percent))
		}
		err = firstErr(err,
			add("Total selections", v.TotalSelections, ""),
			add("Respondents", v.Respondents, ""),
		)
		for _, t := range v.OtherTexts {
			err = firstErr(err, add("Other", t, ""))
		}
	case *stats.LikertSummary:
		err = head("Value", "Label", "Count", "Percent")
		for _, sc := range v.Scale {
			err = firstErr(err, add(sc.Value, sc.Label, sc.Count, sc.Percent))
		}
		err = firstErr(err,
			add("Mean", v.Mean, "", ""),
			add("Responses", v.Responses, "", ""),
		)
	case *stats.NumericSummary:
		err = firstErr(
			head("Metric", "Value"),
			add("Count", v.Count),
			add("Sum", v.Sum),
			add("Mean", v.Mean),
			add("Median", v.Median),
			add("Min", v.Min),
			add("Max", v.Max),
		)
		next++
		err = firstErr(err, head("Value", "Count"))
		for _, d := range v.Distribution {
			err = firstErr(err, add(d.Value, d.Count))
		}
	}
	return err
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

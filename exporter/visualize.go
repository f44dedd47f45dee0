package exporter

import (
	"fmt"
	"strings"

	"github.com/vnkhanh/tracer-study/stats"
)

type visualizer func(d *document, s stats.Summary)

// visualizers picks the drawing for each summary kind; anything missing falls
// back to visualizeText.
var visualizers = map[stats.Kind]visualizer{
	stats.KindYesNo:       visualizeYesNo,
	stats.KindMultiChoice: visualizeChoice,
	stats.KindLikert:      visualizeLikert,
	stats.KindNumeric:     visualizeNumeric,
	stats.KindMatrix:      visualizeMatrix,
	stats.KindRanking:     visualizeRanking,
	stats.KindFile:        visualizeFiles,
}

const maxListed = 25

// bar draws "label | bar | count (pct%)" with the bar scaled to pct.
func (d *document) bar(label string, count int, pct float64) {
	pdf := d.pdf
	labelW := d.width * 0.38
	barW := d.width * 0.42
	h := 6.0

	pdf.CellFormat(labelW, h, d.tr(truncate(label, 48)), "", 0, "L", false, 0, "")
	x, y := pdf.GetX(), pdf.GetY()
	pdf.SetFillColor(235, 235, 235)
	pdf.Rect(x, y+1, barW, h-2, "F")
	if pct > 0 {
		pdf.SetFillColor(68, 114, 196)
		pdf.Rect(x, y+1, barW*pct/100, h-2, "F")
	}
	pdf.SetX(x + barW + 2)
	pdf.CellFormat(0, h, fmt.Sprintf("%d (%.1f%%)", count, pct), "", 1, "L", false, 0, "")
}

func (d *document) table(header []string, widths []float64, rows [][]string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(221, 235, 247)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, d.tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, c := range row {
			align := "L"
			if i > 0 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, d.tr(truncate(c, 40)), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "", 10)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func visualizeYesNo(d *document, s stats.Summary) {
	v := s.(*stats.YesNoSummary)
	d.bar("Yes", v.Yes, v.YesPercent)
	d.bar("No", v.No, v.NoPercent)
	d.line(fmt.Sprintf("%d answers", v.Total))
}

func visualizeChoice(d *document, s stats.Summary) {
	v := s.(*stats.ChoiceSummary)
	for _, o := range v.Options {
		d.bar(o.Label, o.Count, o.Percent)
	}
	d.line(fmt.Sprintf("%d respondents, %d selections", v.Respondents, v.TotalSelections))
	if len(v.OtherTexts) > 0 {
		d.line("Other: " + strings.Join(limit(v.OtherTexts, maxListed), "; "))
	}
}

func visualizeLikert(d *document, s stats.Summary) {
	v := s.(*stats.LikertSummary)
	for _, sc := range v.Scale {
		d.bar(fmt.Sprintf("%d - %s", sc.Value, sc.Label), sc.Count, sc.Percent)
	}
	d.line(fmt.Sprintf("Mean %.2f over %d responses", v.Mean, v.Responses))
}

func visualizeNumeric(d *document, s stats.Summary) {
	v := s.(*stats.NumericSummary)
	d.table(
		[]string{"Count", "Mean", "Median", "Min", "Max"},
		[]float64{d.width / 5, d.width / 5, d.width / 5, d.width / 5, d.width / 5},
		[][]string{{
			fmt.Sprint(v.Count), fmt.Sprintf("%.2f", v.Mean), fmt.Sprintf("%.2f", v.Median),
			fmt.Sprintf("%g", v.Min), fmt.Sprintf("%g", v.Max),
		}},
	)
	total := v.Count
	for _, dv := range v.Distribution {
		pct := 0.0
		if total > 0 {
			pct = stats.Percent(float64(dv.Count) / float64(total))
		}
		d.bar(fmt.Sprintf("%g", dv.Value), dv.Count, pct)
	}
}

func visualizeMatrix(d *document, s stats.Summary) {
	v := s.(*stats.MatrixSummary)
	if len(v.Columns) == 0 {
		d.line("No answers yet.")
		return
	}
	first := d.width * 0.3
	rest := (d.width - first) / float64(len(v.Columns))
	widths := []float64{first}
	header := []string{""}
	for _, c := range v.Columns {
		header = append(header, c)
		widths = append(widths, rest)
	}
	rows := make([][]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		row := []string{r.Row}
		for _, c := range r.Cells {
			row = append(row, fmt.Sprintf("%d (%.1f%%)", c.Count, c.Percent))
		}
		rows = append(rows, row)
	}
	d.table(header, widths, rows)
	d.line(fmt.Sprintf("%d respondents", v.Respondents))
}

func visualizeRanking(d *document, s stats.Summary) {
	v := s.(*stats.RankingSummary)
	rows := make([][]string, 0, len(v.Items))
	for i, it := range v.Items {
		avg := "-"
		if it.Appearances > 0 {
			avg = fmt.Sprintf("%.2f", it.AveragePosition)
		}
		rows = append(rows, []string{fmt.Sprintf("%d. %s", i+1, it.Label), avg, fmt.Sprint(it.FirstPlace)})
	}
	d.table([]string{"Item", "Average position", "Ranked first"},
		[]float64{d.width * 0.5, d.width * 0.25, d.width * 0.25}, rows)
	d.line(fmt.Sprintf("%d respondents", v.Respondents))
}

func visualizeFiles(d *document, s stats.Summary) {
	v := s.(*stats.FileSummary)
	d.line(fmt.Sprintf("%d files from %d responses (%.2f per response)", v.TotalFiles, len(v.Responses), v.AveragePerResponse))
	for _, t := range v.TypeDistribution {
		d.bar(t.Type, t.Count, t.Percent)
	}
}

// visualizeText lists answers verbatim; it also serves raw and unknown kinds.
func visualizeText(d *document, s stats.Summary) {
	var values []stats.TextEntry
	switch v := s.(type) {
	case *stats.TextSummary:
		values = v.Values
		d.line(fmt.Sprintf("%d answers, average length %.1f", v.Count, v.AverageLength))
	case *stats.RawSummary:
		values = v.Values
		d.line(fmt.Sprintf("%d answers", len(values)))
	default:
		d.line(fmt.Sprintf("%d answers", s.Answered()))
	}
	for i, e := range values {
		if i == maxListed {
			d.line(fmt.Sprintf("... and %d more", len(values)-maxListed))
			break
		}
		d.line("- " + e.Value)
	}
}

func limit(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

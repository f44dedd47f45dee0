package exporter

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/stats"
)

type BlockKind int

const (
	BlockContents BlockKind = iota
	BlockSection
	BlockQuestion
	BlockPageBreak
)

// questionsPerPage is how many questions share a page before a hard break.
const questionsPerPage = 3

// Block is one step of the document layout.
type Block struct {
	Kind     BlockKind
	Section  *models.Section
	Question *models.Question
	Summary  stats.Summary
}

func heavy(t models.QuestionType) bool {
	k := stats.KindOf(t)
	return k == stats.KindMatrix || k == stats.KindRanking
}

// PlanDocument lays out the document: contents first, then each section
// heading followed by its questions. A page break follows every third
// question, and matrix or ranking questions always sit on a page of their own.
func PlanDocument(r *Report) []Block {
	sums := r.summaries()
	blocks := []Block{{Kind: BlockContents}}
	onPage := 0

	pageBreak := func() {
		if blocks[len(blocks)-1].Kind != BlockPageBreak {
			blocks = append(blocks, Block{Kind: BlockPageBreak})
		}
		onPage = 0
	}
	pageBreak()

	for i := range r.Sections {
		sec := &r.Sections[i]
		blocks = append(blocks, Block{Kind: BlockSection, Section: sec})
		for j := range sec.Questions {
			q := &sec.Questions[j]
			if !q.Type.Answerable() {
				continue
			}
			big := heavy(q.Type)
			if big && onPage > 0 {
				pageBreak()
			}
			blocks = append(blocks, Block{Kind: BlockQuestion, Section: sec, Question: q, Summary: sums[q.ID]})
			onPage++
			if big || onPage == questionsPerPage {
				pageBreak()
			}
		}
	}

	if blocks[len(blocks)-1].Kind == BlockPageBreak {
		blocks = blocks[:len(blocks)-1]
	}
	return blocks
}

type document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64
}

// RenderDocument renders the planned layout to PDF bytes.
func RenderDocument(r *Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.title(), true)
	pdf.SetCreator("tracer-study", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	d.width = pageW - left - right

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	blocks := PlanDocument(r)
	links := make(map[uint]int)
	sectionLinks := make(map[uint]int)
	for _, b := range blocks {
		switch b.Kind {
		case BlockSection:
			sectionLinks[b.Section.ID] = pdf.AddLink()
		case BlockQuestion:
			links[b.Question.ID] = pdf.AddLink()
		}
	}

	pdf.AddPage()
	for _, b := range blocks {
		switch b.Kind {
		case BlockContents:
			d.contents(r, blocks, sectionLinks, links)
		case BlockPageBreak:
			pdf.AddPage()
		case BlockSection:
			pdf.SetLink(sectionLinks[b.Section.ID], pdf.GetY(), -1)
			d.sectionHeading(b.Section)
		case BlockQuestion:
			pdf.SetLink(links[b.Question.ID], pdf.GetY(), -1)
			d.question(b.Question, b.Summary)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *document) contents(r *Report, blocks []Block, sectionLinks, links map[uint]int) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, d.tr(r.title()), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	st := r.stats()
	pdf.CellFormat(0, 6, d.tr(fmt.Sprintf("Generated %s  |  %d responses, %d completed (%.1f%%)",
		formatTime(&r.GeneratedAt), st.TotalResponses, st.CompletedResponses, stats.Percent(st.CompletionRate))),
		"", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Contents", "", 1, "L", false, 0, "")
	for _, b := range blocks {
		switch b.Kind {
		case BlockSection:
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, 7, d.tr(b.Section.Title), "", 1, "L", false, sectionLinks[b.Section.ID], "")
		case BlockQuestion:
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetX(pdf.GetX() + 6)
			pdf.CellFormat(0, 6, d.tr(b.Question.Title), "", 1, "L", false, links[b.Question.ID], "")
		}
	}
}

func (d *document) sectionHeading(sec *models.Section) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetFillColor(221, 235, 247)
	pdf.MultiCell(0, 9, d.tr(sec.Title), "", "L", true)
	if sec.Description != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, d.tr(sec.Description), "", "L", false)
	}
	pdf.Ln(3)
}

func (d *document) question(q *models.Question, s stats.Summary) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 7, d.tr(q.Title), "", "L", false)
	if q.Description != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, d.tr(q.Description), "", "L", false)
	}
	pdf.SetFont("Helvetica", "", 10)

	if s == nil {
		d.line("No answers yet.")
		pdf.Ln(4)
		return
	}
	v, ok := visualizers[s.Kind()]
	if !ok {
		v = visualizeText
	}
	v(d, s)
	pdf.Ln(5)
}

func (d *document) line(text string) {
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
}

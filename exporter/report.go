// Package exporter renders a questionnaire report as a workbook or as a
// paginated PDF document and places the files on disk.
package exporter

import (
	"time"

	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/stats"
)

// Report is everything both renderers read. Sections carry their questions
// and options in display order; responses carry their answers.
type Report struct {
	Questionnaire *models.Questionnaire
	Sections      []models.Section
	Responses     []models.Response
	Statistics    *models.ResponseStatistics
	Summaries     []stats.QuestionSummary
	GeneratedAt   time.Time
}

type questionRef struct {
	section  *models.Section
	question *models.Question
}

// answerable lists the questions that collect answers, in section then question order.
func (r *Report) answerable() []questionRef {
	var out []questionRef
	for i := range r.Sections {
		sec := &r.Sections[i]
		for j := range sec.Questions {
			q := &sec.Questions[j]
			if q.Type.Answerable() {
				out = append(out, questionRef{section: sec, question: q})
			}
		}
	}
	return out
}

func (r *Report) summaries() map[uint]stats.Summary {
	m := make(map[uint]stats.Summary, len(r.Summaries))
	for _, s := range r.Summaries {
		m[s.QuestionID] = s.Summary
	}
	return m
}

func (r *Report) title() string {
	if r.Questionnaire == nil {
		return "Questionnaire"
	}
	return r.Questionnaire.Title
}

func (r *Report) stats() models.ResponseStatistics {
	if r.Statistics == nil {
		return models.ResponseStatistics{}
	}
	return *r.Statistics
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

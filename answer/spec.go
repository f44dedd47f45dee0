// Package answer turns submitted answer payloads into stored AnswerDetail
// values and reads them back for statistics and export.
package answer

import (
	"errors"
	"fmt"

	"github.com/vnkhanh/tracer-study/models"
)

// NullSentinel is stored for a skipped, non-required checkbox so that
// "skipped" stays distinguishable from an explicit empty list.
const NullSentinel = "null"

var (
	ErrRequired      = errors.New("answer is required")
	ErrInvalid       = errors.New("invalid answer")
	ErrNotAnswerable = errors.New("question does not accept answers")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Stored is what ends up in AnswerDetail.AnswerValue / AnswerData.
type Stored struct {
	Value string
	Data  []byte
}

// Spec bundles a question with its decoded settings and option lookup.
type Spec struct {
	Question *models.Question
	Settings models.QuestionSettings

	labels map[string]string
	values []string
}

// NewSpec decodes the question settings once. A settings decode error is
// returned alongside a usable Spec built on empty settings.
func NewSpec(q *models.Question) (*Spec, error) {
	settings, err := models.ParseQuestionSettings(q.Type, q.Settings)
	s := &Spec{
		Question: q,
		Settings: settings,
		labels:   make(map[string]string, len(q.Options)),
		values:   make([]string, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		s.labels[o.Value] = o.Label
		s.values = append(s.values, o.Value)
	}
	return s, err
}

// OptionValues returns option values in stored order.
func (s *Spec) OptionValues() []string {
	return s.values
}

func (s *Spec) HasOption(v string) bool {
	_, ok := s.labels[v]
	return ok
}

// Label returns the display label for an option value, or the value itself.
func (s *Spec) Label(v string) string {
	if l, ok := s.labels[v]; ok && l != "" {
		return l
	}
	return v
}

func (s *Spec) allowsOther() bool {
	if s.HasOption(models.OtherValue) {
		return true
	}
	return s.Settings.Choice != nil && s.Settings.Choice.AllowOther
}

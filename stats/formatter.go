package stats

import (
	"fmt"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"go.uber.org/zap"
)

// Handler builds the summary for one kind. An error means the stored payloads
// could not be read for this kind; the Formatter then uses the raw handler.
type Handler func(spec *answer.Spec, answers []models.AnswerDetail) (Summary, error)

type Formatter struct {
	handlers map[Kind]Handler
	logger   *logger.Logger
}

func NewFormatter(log *logger.Logger) *Formatter {
	if log == nil {
		log = logger.Nop()
	}
	f := &Formatter{
		handlers: make(map[Kind]Handler),
		logger:   log,
	}
	f.Register(KindYesNo, formatYesNo)
	f.Register(KindMultiChoice, formatChoice)
	f.Register(KindLikert, formatLikert)
	f.Register(KindNumeric, formatNumeric)
	f.Register(KindMatrix, formatMatrix)
	f.Register(KindRanking, formatRanking)
	f.Register(KindFile, formatFiles)
	f.Register(KindText, formatText)
	f.Register(KindRaw, formatRaw)
	return f
}

// Register installs or replaces the handler for k.
func (f *Formatter) Register(k Kind, h Handler) {
	f.handlers[k] = h
}

// Format summarizes the answers of q. It returns nil for display-only questions.
func (f *Formatter) Format(q *models.Question, answers []models.AnswerDetail) Summary {
	kind := KindOf(q.Type)
	if kind == KindNone {
		return nil
	}

	spec, err := answer.NewSpec(q)
	if err != nil {
		f.logger.Warn("malformed question settings, using defaults",
			zap.Uint("question_id", q.ID),
			zap.Error(err))
	}

	h, ok := f.handlers[kind]
	if !ok {
		h = f.handlers[KindRaw]
	}

	s, err := h(spec, answers)
	if err == nil {
		return s
	}

	f.logger.Warn("falling back to raw formatter",
		zap.Uint("question_id", q.ID),
		zap.String("kind", string(kind)),
		zap.Error(err))
	raw, _ := formatRaw(spec, answers)
	raw.(*RawSummary).Reason = fmt.Sprintf("could not read %s answers: %v", kind, err)
	return raw
}

// FormatAll summarizes every answerable question, in section then question order
// as given.
func (f *Formatter) FormatAll(sections []models.Section, responses []models.Response) []QuestionSummary {
	byQuestion := make(map[uint][]models.AnswerDetail)
	for _, r := range responses {
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}
	}

	var out []QuestionSummary
	for _, sec := range sections {
		for i := range sec.Questions {
			q := &sec.Questions[i]
			s := f.Format(q, byQuestion[q.ID])
			if s == nil {
				continue
			}
			out = append(out, QuestionSummary{
				QuestionID: q.ID,
				SectionID:  sec.ID,
				Title:      q.Title,
				Type:       q.Type,
				Kind:       s.Kind(),
				Summary:    s,
			})
		}
	}
	return out
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/vnkhanh/tracer-study/exporter"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/stats"
	"go.uber.org/zap"
)

// ReportService assembles the data behind an export and hands it to the
// exporter.
type ReportService struct {
	schema    *SchemaService
	responses *ResponseService
	formatter *stats.Formatter
	exporter  *exporter.Exporter
	logger    *logger.Logger
	now       func() time.Time
}

func NewReportService(schema *SchemaService, responses *ResponseService, exp *exporter.Exporter, log *logger.Logger) *ReportService {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportService{
		schema:    schema,
		responses: responses,
		formatter: stats.NewFormatter(log),
		exporter:  exp,
		logger:    log,
		now:       time.Now,
	}
}

// Build loads the structure, the responses matching f and their statistics.
func (s *ReportService) Build(ctx context.Context, questionnaireID uint, f ResponseFilter) (*exporter.Report, error) {
	q, err := s.schema.Structure(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	resps, err := s.responses.AllResponses(ctx, questionnaireID, f)
	if err != nil {
		return nil, err
	}
	st, err := s.responses.Statistics(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}

	sections := q.Sections
	q.Sections = nil
	return &exporter.Report{
		Questionnaire: q,
		Sections:      sections,
		Responses:     resps,
		Statistics:    st,
		Summaries:     s.formatter.FormatAll(sections, resps),
		GeneratedAt:   s.now(),
	}, nil
}

// Summaries returns the per-question statistics without rendering anything.
func (s *ReportService) Summaries(ctx context.Context, questionnaireID uint, f ResponseFilter) ([]stats.QuestionSummary, error) {
	r, err := s.Build(ctx, questionnaireID, f)
	if err != nil {
		return nil, err
	}
	return r.Summaries, nil
}

// Export renders the report in format and returns the written file path.
func (s *ReportService) Export(ctx context.Context, questionnaireID uint, format exporter.Format, f ResponseFilter) (string, error) {
	r, err := s.Build(ctx, questionnaireID, f)
	if err != nil {
		return "", err
	}
	path, err := s.exporter.Export(ctx, format, r)
	if errors.Is(err, exporter.ErrUnknownFormat) {
		return "", invalidField("format", "must be xlsx or pdf")
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("questionnaire exported",
		zap.Uint("questionnaire_id", questionnaireID),
		zap.String("format", string(format)),
		zap.Int("responses", len(r.Responses)))
	return path, nil
}

package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/exporter"
	"github.com/vnkhanh/tracer-study/stats"
)

func TestReportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, "")
	for _, who := range []string{"a", "b"} {
		_, err := f.responses.Submit(ctx, SubmitRequest{
			Slug:                 s.q.SlugValue(),
			RespondentIdentifier: who,
			Answers: map[uint]json.RawMessage{
				s.yesNo.ID:    raw(`"yes"`),
				s.checkbox.ID: raw(`["go"]`),
				s.text.ID:     raw(`"Engineer"`),
			},
		}, RespondentMeta{})
		require.NoError(t, err)
	}

	dir := t.TempDir()
	reports := NewReportService(f.schema, f.responses, exporter.New(dir, time.Minute, nil), nil)

	r, err := reports.Build(ctx, s.q.ID, ResponseFilter{})
	require.NoError(t, err)
	assert.Len(t, r.Responses, 2)
	assert.Equal(t, int64(2), r.Statistics.CompletedResponses)
	require.Len(t, r.Summaries, 3)

	yn, ok := r.Summaries[0].Summary.(*stats.YesNoSummary)
	require.True(t, ok)
	assert.Equal(t, 2, yn.Yes)

	for _, format := range []exporter.Format{exporter.FormatXLSX, exporter.FormatPDF} {
		path, err := reports.Export(ctx, s.q.ID, format, ResponseFilter{})
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(path))
		assert.True(t, strings.HasPrefix(filepath.Base(path), "alumni-2024_"))
		assert.FileExists(t, path)
	}

	_, err = reports.Export(ctx, s.q.ID, exporter.Format("csv"), ResponseFilter{})
	assert.Equal(t, []string{"format"}, f.fieldsOf(t, err))

	_, err = reports.Export(ctx, 999, exporter.FormatPDF, ResponseFilter{})
	assert.ErrorIs(t, err, ErrNotFound)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuestionnaire_IsActive(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		status QuestionnaireStatus
		start  *time.Time
		end    *time.Time
		want   bool
	}{
		{"published without window", StatusPublished, nil, nil, true},
		{"draft without window", StatusDraft, nil, nil, false},
		{"closed without window", StatusClosed, nil, nil, false},
		{"inside window", StatusPublished, &before, &after, true},
		{"before start", StatusPublished, &after, nil, false},
		{"after end", StatusPublished, nil, &before, false},
		{"start bound inclusive", StatusPublished, &now, nil, true},
		{"end bound inclusive", StatusPublished, nil, &now, true},
		{"only start, passed", StatusPublished, &before, nil, true},
		{"only end, not reached", StatusPublished, nil, &after, true},
		{"draft inside window", StatusDraft, &before, &after, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Questionnaire{Status: tt.status, StartDate: tt.start, EndDate: tt.end}
			assert.Equal(t, tt.want, q.IsActive(now))
		})
	}
}

func TestResponse_IsComplete(t *testing.T) {
	r := Response{}
	assert.False(t, r.IsComplete())

	now := time.Now()
	r.CompletedAt = &now
	assert.True(t, r.IsComplete())
}

func TestResponse_Respondent(t *testing.T) {
	assert.Equal(t, "Anonymous", (&Response{}).Respondent())
	assert.Equal(t, "a@b.id", (&Response{RespondentEmail: "a@b.id"}).Respondent())
	assert.Equal(t, "Sari", (&Response{RespondentName: "Sari", RespondentEmail: "a@b.id"}).Respondent())
	assert.Equal(t, "Budi", (&Response{User: &User{Name: "Budi"}}).Respondent())
}

func TestQuestionnaireSettings(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		s, err := ParseQuestionnaireSettings(nil)
		assert.NoError(t, err)
		_, limited := s.Limit()
		assert.False(t, limited)
		assert.True(t, s.ResumeAllowed())
		assert.False(t, s.LoginRequired())
	})

	t.Run("clamps max_responses", func(t *testing.T) {
		s, err := ParseQuestionnaireSettings([]byte(`{"max_responses":0,"require_login":true}`))
		assert.NoError(t, err)
		limit, limited := s.Limit()
		assert.True(t, limited)
		assert.Equal(t, 1, limit)
		assert.True(t, s.LoginRequired())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseQuestionnaireSettings([]byte(`{"max_responses":`))
		assert.Error(t, err)
	})

	t.Run("merge keeps absent fields and clears explicit null", func(t *testing.T) {
		base, _ := ParseQuestionnaireSettings([]byte(`{"max_responses":10,"show_progress":true}`))
		patch, _ := ParseQuestionnaireSettings([]byte(`{"max_responses":null}`))
		merged := base.Merge(patch)
		_, limited := merged.Limit()
		assert.False(t, limited)
		assert.True(t, *merged.ShowProgress)
	})
}

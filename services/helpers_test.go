package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/cache"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/testutil"
	"gorm.io/gorm"
)

type published struct {
	key     string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, key string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{key: key, payload: payload})
	return nil
}

func (r *recorder) IsHealthy() bool { return true }
func (r *recorder) Close() error    { return nil }

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.key)
	}
	return out
}

func (r *recorder) last(key string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].key == key {
			return r.events[i].payload
		}
	}
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[uint][]byte
}

func newMemCache() *memCache { return &memCache{data: map[uint][]byte{}} }

func (m *memCache) Get(_ context.Context, id uint) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (m *memCache) Set(_ context.Context, id uint, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = append([]byte(nil), b...)
	return nil
}

func (m *memCache) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memCache) IsHealthy() bool { return true }
func (m *memCache) Close() error    { return nil }

type fixture struct {
	db        *gorm.DB
	owner     *models.User
	cache     *memCache
	events    *recorder
	schema    *SchemaService
	responses *ResponseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	f := &fixture{
		db:     db,
		owner:  testutil.User(t, db, "owner@example.com", "secret-pass", true),
		cache:  newMemCache(),
		events: &recorder{},
	}
	f.schema = NewSchemaService(db, f.cache, f.events, nil)
	f.responses = NewResponseService(db, f.events, nil)
	return f
}

func ptr[T any](v T) *T { return &v }

func qtype(t models.QuestionType) *models.QuestionType { return &t }

func (f *fixture) questionnaire(t *testing.T, title string) *models.Questionnaire {
	t.Helper()
	q, err := f.schema.CreateQuestionnaire(context.Background(), f.owner.ID, QuestionnaireInput{Title: ptr(title)})
	require.NoError(t, err)
	return q
}

func (f *fixture) section(t *testing.T, qid uint, title string) *models.Section {
	t.Helper()
	s, err := f.schema.CreateSection(context.Background(), qid, SectionInput{Title: ptr(title)})
	require.NoError(t, err)
	return s
}

func (f *fixture) question(t *testing.T, sid uint, typ models.QuestionType, title string, required bool, opts ...string) *models.Question {
	t.Helper()
	in := QuestionInput{Type: qtype(typ), Title: ptr(title), Required: ptr(required)}
	for _, o := range opts {
		in.Options = append(in.Options, OptionInput{Value: ptr(o), Label: ptr(o)})
	}
	q, err := f.schema.CreateQuestion(context.Background(), sid, in)
	require.NoError(t, err)
	return q
}

// survey is a published questionnaire with one section of three questions:
// a required yes/no, an optional checkbox and a required text.
type survey struct {
	q        *models.Questionnaire
	sec      *models.Section
	yesNo    *models.Question
	checkbox *models.Question
	text     *models.Question
}

func (f *fixture) survey(t *testing.T, settings string) *survey {
	t.Helper()
	ctx := context.Background()
	in := QuestionnaireInput{Title: ptr("Alumni 2024")}
	if settings != "" {
		in.Settings = json.RawMessage(settings)
	}
	q, err := f.schema.CreateQuestionnaire(ctx, f.owner.ID, in)
	require.NoError(t, err)

	s := &survey{q: q}
	s.sec = f.section(t, q.ID, "Employment")
	s.yesNo = f.question(t, s.sec.ID, models.TypeYesNo, "Employed?", true)
	s.checkbox = f.question(t, s.sec.ID, models.TypeCheckbox, "Skills", false, "go", "sql", "excel")
	s.text = f.question(t, s.sec.ID, models.TypeText, "Job title", true)

	q, err = f.schema.Publish(ctx, q.ID)
	require.NoError(t, err)
	s.q = q
	return s
}

func (f *fixture) fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	out := make([]string, 0, len(ve.Fields))
	for _, fe := range ve.Fields {
		out = append(out, fe.Field)
	}
	return out
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

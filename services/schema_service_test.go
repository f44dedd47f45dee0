package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/models"
)

func TestCreateQuestionnaire_Slugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.questionnaire(t, "Khảo sát Việc làm 2024")
	assert.Equal(t, "khao-sat-viec-lam-2024", first.SlugValue())
	assert.Equal(t, models.StatusDraft, first.Status)

	second := f.questionnaire(t, "Khảo sát việc làm 2024")
	assert.Equal(t, "khao-sat-viec-lam-2024-2", second.SlugValue())

	_, err := f.schema.CreateQuestionnaire(ctx, f.owner.ID, QuestionnaireInput{
		Title: ptr("Other"),
		Slug:  ptr("khao-sat-viec-lam-2024"),
	})
	assert.Equal(t, []string{"slug"}, f.fieldsOf(t, err))
	assert.Contains(t, err.Error(), "slug already taken")

	symbols := f.questionnaire(t, "!!!")
	assert.Len(t, symbols.SlugValue(), 8)
}

func TestCreateQuestionnaire_SlugSuffixesRunOut(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < slugAttempts; i++ {
		f.questionnaire(t, "Exit survey")
	}

	_, err := uniqueSlug(f.db, "exit-survey", 0)
	assert.ErrorIs(t, err, ErrSlugExhausted)
	assert.Equal(t, []string{"slug"}, f.fieldsOf(t, err))

	q, err := f.schema.CreateQuestionnaire(context.Background(), f.owner.ID, QuestionnaireInput{Title: ptr("Exit survey")})
	require.NoError(t, err)
	assert.Len(t, q.SlugValue(), 8)
	assert.NotContains(t, q.SlugValue(), "exit-survey")
}

func TestCreateQuestionnaire_Validation(t *testing.T) {
	f := newFixture(t)
	in := QuestionnaireInput{Title: ptr("  ")}
	require.NoError(t, json.Unmarshal([]byte(`{"start_date":"2024-06-01T00:00:00Z","end_date":"2024-05-01T00:00:00Z"}`), &in))

	_, err := f.schema.CreateQuestionnaire(context.Background(), f.owner.ID, in)
	assert.ElementsMatch(t, []string{"title", "end_date"}, f.fieldsOf(t, err))
}

func TestUpdateQuestionnaire_MergesSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.schema.CreateQuestionnaire(ctx, f.owner.ID, QuestionnaireInput{
		Title:    ptr("Alumni"),
		Settings: json.RawMessage(`{"max_responses":10,"allow_resume":true}`),
	})
	require.NoError(t, err)

	q, err = f.schema.UpdateQuestionnaire(ctx, q.ID, QuestionnaireInput{
		Description: ptr("Yearly survey"),
		Settings:    json.RawMessage(`{"max_responses":null}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Yearly survey", q.Description)
	assert.Equal(t, "Alumni", q.Title)

	settings, err := models.ParseQuestionnaireSettings(q.Settings)
	require.NoError(t, err)
	_, limited := settings.Limit()
	assert.False(t, limited)
	assert.True(t, settings.ResumeAllowed())
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")

	_, err := f.schema.Publish(ctx, q.ID)
	assert.Equal(t, []string{"status"}, f.fieldsOf(t, err))

	sec := f.section(t, q.ID, "Intro")
	f.question(t, sec.ID, models.TypeText, "Name", false)

	q, err = f.schema.Publish(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, q.Status)
	assert.Contains(t, f.events.keys(), events.QuestionnairePublished)

	_, _, err = f.responses.FindOrCreate(ctx, q.ID, "alumni-1", RespondentMeta{})
	require.NoError(t, err)

	_, err = f.schema.SetStatus(ctx, q.ID, models.StatusDraft)
	assert.Equal(t, []string{"status"}, f.fieldsOf(t, err))

	q, err = f.schema.Close(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, q.Status)

	_, err = f.schema.SetStatus(ctx, q.ID, "archived")
	assert.Equal(t, []string{"status"}, f.fieldsOf(t, err))
}

func TestReorderSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")
	a := f.section(t, q.ID, "A")
	b := f.section(t, q.ID, "B")
	c := f.section(t, q.ID, "C")
	assert.Equal(t, []int{0, 1, 2}, []int{a.Order, b.Order, c.Order})

	require.NoError(t, f.schema.ReorderSections(ctx, q.ID, []uint{c.ID, a.ID, b.ID}))

	tree, err := f.schema.Tree(ctx, q.ID)
	require.NoError(t, err)
	var titles []string
	for _, s := range tree.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"C", "A", "B"}, titles)
}

func TestReorderSections_RejectsPartialList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")
	a := f.section(t, q.ID, "A")
	b := f.section(t, q.ID, "B")

	cases := [][]uint{
		{b.ID},
		{b.ID, b.ID},
		{b.ID, a.ID, 999},
	}
	for _, ids := range cases {
		err := f.schema.ReorderSections(ctx, q.ID, ids)
		assert.Equal(t, []string{"ids"}, f.fieldsOf(t, err))
	}

	var got []models.Section
	require.NoError(t, f.db.Order("id").Find(&got).Error)
	assert.Equal(t, 0, got[0].Order)
	assert.Equal(t, 1, got[1].Order)
}

func TestMoveQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")
	s1 := f.section(t, q.ID, "One")
	s2 := f.section(t, q.ID, "Two")
	q1 := f.question(t, s1.ID, models.TypeText, "q1", false)
	q2 := f.question(t, s1.ID, models.TypeText, "q2", false)
	q3 := f.question(t, s1.ID, models.TypeText, "q3", false)
	q4 := f.question(t, s2.ID, models.TypeText, "q4", false)

	moved, err := f.schema.MoveQuestion(ctx, q1.ID, s2.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, moved.SectionID)
	assert.Equal(t, 1, moved.Order)

	order := func(sid uint) []uint {
		ids, err := childIDs(f.db, &models.Question{}, "section_id", sid)
		require.NoError(t, err)
		return ids
	}
	assert.Equal(t, []uint{q2.ID, q3.ID}, order(s1.ID))
	assert.Equal(t, []uint{q4.ID, q1.ID}, order(s2.ID))

	var rows []models.Question
	require.NoError(t, f.db.Where("section_id = ?", s1.ID).Order("sort_order").Find(&rows).Error)
	assert.Equal(t, 0, rows[0].Order)
	assert.Equal(t, 1, rows[1].Order)
}

func TestDeleteQuestionnaire_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, "")
	_, err := f.schema.ReplaceLogic(ctx, s.yesNo.ID, []LogicInput{{
		ConditionType:    models.ConditionEquals,
		ConditionValue:   "yes",
		ActionType:       models.ActionShow,
		TargetQuestionID: &s.text.ID,
	}})
	require.NoError(t, err)
	_, err = f.responses.Submit(ctx, SubmitRequest{
		Slug:                 s.q.SlugValue(),
		RespondentIdentifier: "a",
		Answers: map[uint]json.RawMessage{
			s.yesNo.ID: json.RawMessage(`"yes"`),
			s.text.ID:  json.RawMessage(`"Engineer"`),
		},
	}, RespondentMeta{})
	require.NoError(t, err)
	other := f.survey(t, "")

	require.NoError(t, f.schema.DeleteQuestionnaire(ctx, s.q.ID))

	for _, m := range []any{&models.Section{}, &models.Question{}, &models.Response{}, &models.AnswerDetail{}} {
		assert.Zero(t, f.count(t, m, "questionnaire_id = ?", s.q.ID), "%T", m)
	}
	assert.Zero(t, f.count(t, &models.Option{}, "question_id = ?", s.checkbox.ID))
	assert.Zero(t, f.count(t, &models.QuestionLogic{}, ""))
	assert.Equal(t, int64(3), f.count(t, &models.Question{}, "questionnaire_id = ?", other.q.ID))

	_, err = f.cache.Get(ctx, s.q.ID)
	assert.Error(t, err)
	assert.ErrorIs(t, f.schema.DeleteQuestionnaire(ctx, s.q.ID), ErrNotFound)
}

func TestDeleteQuestion_RemovesLogicPointingAtIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")
	sec := f.section(t, q.ID, "S")
	a := f.question(t, sec.ID, models.TypeYesNo, "a", false)
	b := f.question(t, sec.ID, models.TypeText, "b", false)
	c := f.question(t, sec.ID, models.TypeText, "c", false)
	_, err := f.schema.ReplaceLogic(ctx, a.ID, []LogicInput{{
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		ActionType: models.ActionHide, TargetQuestionID: &b.ID,
	}})
	require.NoError(t, err)

	require.NoError(t, f.schema.DeleteQuestion(ctx, b.ID))
	assert.Zero(t, f.count(t, &models.QuestionLogic{}, ""))

	var left models.Question
	require.NoError(t, f.db.First(&left, c.ID).Error)
	assert.Equal(t, 1, left.Order)
}

func TestReplaceLogic_RejectsForeignTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	one := f.survey(t, "")
	two := f.survey(t, "")

	_, err := f.schema.ReplaceLogic(ctx, one.yesNo.ID, []LogicInput{
		{ConditionType: "matches", ActionType: models.ActionShow, TargetQuestionID: &two.text.ID},
		{ConditionType: models.ConditionEquals, ActionType: models.ActionJump},
	})
	assert.ElementsMatch(t, []string{
		"rules.0.condition_type", "rules.0.target_question_id", "rules.1",
	}, f.fieldsOf(t, err))
}

func TestQuestion_TypeChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, "")

	q, err := f.schema.UpdateQuestion(ctx, s.checkbox.ID, QuestionInput{Type: qtype(models.TypeText)})
	require.NoError(t, err)
	assert.Equal(t, models.TypeText, q.Type)
	assert.Zero(t, f.count(t, &models.Option{}, "question_id = ?", s.checkbox.ID))

	r, _, err := f.responses.FindOrCreate(ctx, s.q.ID, "a", RespondentMeta{})
	require.NoError(t, err)
	_, err = f.responses.SaveAnswer(ctx, r.ID, s.text.ID, json.RawMessage(`"Engineer"`))
	require.NoError(t, err)

	_, err = f.schema.UpdateQuestion(ctx, s.text.ID, QuestionInput{Type: qtype(models.TypeTextarea)})
	assert.Equal(t, []string{"type"}, f.fieldsOf(t, err))
}

func TestQuestion_MatrixNeedsRowsAndColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Grid")
	sec := f.section(t, q.ID, "Ratings")

	_, err := f.schema.CreateQuestion(ctx, sec.ID, QuestionInput{Type: qtype(models.TypeMatrix), Title: ptr("grid")})
	assert.Equal(t, []string{"settings"}, f.fieldsOf(t, err))
	assert.Zero(t, f.count(t, &models.Question{}, "section_id = ?", sec.ID))

	grid, err := f.schema.CreateQuestion(ctx, sec.ID, QuestionInput{
		Type:     qtype(models.TypeMatrix),
		Title:    ptr("grid"),
		Settings: json.RawMessage(`{"rows":["Speed"],"columns":["Low","High"]}`),
	})
	require.NoError(t, err)

	_, err = f.schema.UpdateQuestion(ctx, grid.ID, QuestionInput{Settings: json.RawMessage(`{"rows":[]}`)})
	assert.Equal(t, []string{"settings"}, f.fieldsOf(t, err))

	text := f.question(t, sec.ID, models.TypeText, "Comment", false)
	_, err = f.schema.UpdateQuestion(ctx, text.ID, QuestionInput{Type: qtype(models.TypeMatrix)})
	assert.Equal(t, []string{"settings"}, f.fieldsOf(t, err))

	changed, err := f.schema.UpdateQuestion(ctx, text.ID, QuestionInput{
		Type:     qtype(models.TypeMatrix),
		Settings: json.RawMessage(`{"rows":["Speed"],"columns":["Low"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TypeMatrix, changed.Type)
}

func TestCreateQuestion_Options(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.questionnaire(t, "Alumni")
	sec := f.section(t, q.ID, "S")

	_, err := f.schema.CreateQuestion(ctx, sec.ID, QuestionInput{
		Type:  qtype(models.TypeText),
		Title: ptr("Name"),
		Options: []OptionInput{
			{Label: ptr("x")},
		},
	})
	assert.Equal(t, []string{"options"}, f.fieldsOf(t, err))

	created, err := f.schema.CreateQuestion(ctx, sec.ID, QuestionInput{
		Type:  qtype(models.TypeRadio),
		Title: ptr("Sector"),
		Options: []OptionInput{
			{Label: ptr("Công nghệ")},
			{Label: ptr("Giáo dục")},
		},
	})
	require.NoError(t, err)
	require.Len(t, created.Options, 2)
	assert.Equal(t, "cong-nghe", created.Options[0].Value)
	assert.Equal(t, 1, created.Options[1].Order)

	_, err = f.schema.CreateOption(ctx, created.ID, OptionInput{Value: ptr("cong-nghe"), Label: ptr("Again")})
	assert.Equal(t, []string{"value"}, f.fieldsOf(t, err))

	opt, err := f.schema.CreateOption(ctx, created.ID, OptionInput{Label: ptr("Y tế")})
	require.NoError(t, err)
	assert.Equal(t, 2, opt.Order)

	require.NoError(t, f.schema.DeleteOption(ctx, created.Options[0].ID))
	var opts []models.Option
	require.NoError(t, f.db.Where("question_id = ?", created.ID).Order("sort_order").Find(&opts).Error)
	require.Len(t, opts, 2)
	assert.Equal(t, []int{0, 1}, []int{opts[0].Order, opts[1].Order})
}

func TestSnapshot_MatchesRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, `{"allow_resume":true}`)
	extra := f.section(t, s.q.ID, "Extra")
	f.question(t, extra.ID, models.TypeLikert, "Satisfaction", false, "1", "2", "3", "4", "5")
	require.NoError(t, f.schema.ReorderQuestions(ctx, s.sec.ID, []uint{s.text.ID, s.yesNo.ID, s.checkbox.ID}))
	_, err := f.schema.UpdateSection(ctx, extra.ID, SectionInput{Title: ptr("Extra, renamed")})
	require.NoError(t, err)

	var stored models.Questionnaire
	require.NoError(t, f.db.First(&stored, s.q.ID).Error)

	tree, err := loadTree(f.db, s.q.ID)
	require.NoError(t, err)
	want, err := json.Marshal(BuildSnapshot(tree))
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(stored.Snapshot))

	cached, err := f.cache.Get(ctx, s.q.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(cached))

	got, err := f.schema.Tree(ctx, s.q.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2)
	assert.Equal(t, "Extra, renamed", got.Sections[1].Title)
	assert.Equal(t, s.text.ID, got.Sections[0].Questions[0].ID)
}

func TestTree_RebuildsWithoutCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, "")
	require.NoError(t, f.db.Model(&models.Questionnaire{}).Where("id = ?", s.q.ID).UpdateColumn("snapshot", nil).Error)
	require.NoError(t, f.cache.Delete(ctx, s.q.ID))

	tree, err := f.schema.Tree(ctx, s.q.ID)
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	assert.Len(t, tree.Sections[0].Questions, 3)

	_, err = f.cache.Get(ctx, s.q.ID)
	assert.NoError(t, err)
}

func TestClone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, `{"max_responses":50}`)
	second := f.section(t, s.q.ID, "Later")
	_, err := f.schema.ReplaceLogic(ctx, s.yesNo.ID, []LogicInput{
		{ConditionType: models.ConditionEquals, ConditionValue: "no", ActionType: models.ActionJump, TargetSectionID: &second.ID},
		{ConditionType: models.ConditionEquals, ConditionValue: "yes", ActionType: models.ActionShow, TargetQuestionID: &s.text.ID},
	})
	require.NoError(t, err)

	other := testUser(t, f, "editor@example.com")
	dup, err := f.schema.Clone(ctx, s.q.ID, other)
	require.NoError(t, err)
	assert.NotEqual(t, s.q.ID, dup.ID)
	assert.Equal(t, "alumni-2024-2", dup.SlugValue())
	assert.Equal(t, models.StatusDraft, dup.Status)
	assert.Equal(t, other, dup.OwnerID)
	assert.JSONEq(t, string(s.q.Settings), string(dup.Settings))

	src, err := loadTree(f.db, s.q.ID)
	require.NoError(t, err)
	cp, err := loadTree(f.db, dup.ID)
	require.NoError(t, err)
	require.Len(t, cp.Sections, len(src.Sections))

	copiedQuestions := map[uint]bool{}
	copiedSections := map[uint]bool{}
	for i, sec := range cp.Sections {
		copiedSections[sec.ID] = true
		assert.NotEqual(t, src.Sections[i].ID, sec.ID)
		assert.Equal(t, src.Sections[i].Title, sec.Title)
		require.Len(t, sec.Questions, len(src.Sections[i].Questions))
		for j, q := range sec.Questions {
			copiedQuestions[q.ID] = true
			assert.NotEqual(t, src.Sections[i].Questions[j].ID, q.ID)
			assert.Len(t, q.Options, len(src.Sections[i].Questions[j].Options))
		}
	}

	logic := cp.Sections[0].Questions[0].Logic
	require.Len(t, logic, 2)
	require.NotNil(t, logic[0].TargetSectionID)
	assert.True(t, copiedSections[*logic[0].TargetSectionID])
	require.NotNil(t, logic[1].TargetQuestionID)
	assert.True(t, copiedQuestions[*logic[1].TargetQuestionID])

	after, err := loadTree(f.db, s.q.ID)
	require.NoError(t, err)
	assert.Equal(t, BuildSnapshot(src), BuildSnapshot(after))
}

func TestClone_ManyCopiesOfOneSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.questionnaire(t, "Alumni template")

	seen := map[string]bool{src.SlugValue(): true}
	for i := 1; i <= 12; i++ {
		dup, err := f.schema.Clone(ctx, src.ID, f.owner.ID)
		require.NoError(t, err, "clone %d", i)
		slug := dup.SlugValue()
		require.NotEmpty(t, slug)
		assert.False(t, seen[slug], "slug %q reused", slug)
		seen[slug] = true
		if i < slugAttempts {
			assert.Equal(t, fmt.Sprintf("alumni-template-%d", i+1), slug)
		} else {
			assert.Len(t, slug, 8)
		}
	}
}

func TestListQuestionnaires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.questionnaire(t, "Alumni 2023")
	f.questionnaire(t, "Alumni 2024")
	f.questionnaire(t, "Employers")

	list, total, err := f.schema.ListQuestionnaires(ctx, f.owner.ID, QuestionnaireFilter{Search: "alumni", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Alumni 2024", list[0].Title)

	list, total, err = f.schema.ListQuestionnaires(ctx, f.owner.ID+1, QuestionnaireFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestOwnerLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.survey(t, "")

	for _, lookup := range []func() (uint, error){
		func() (uint, error) { return f.schema.OwnerOfQuestionnaire(ctx, s.q.ID) },
		func() (uint, error) { return f.schema.OwnerOfSection(ctx, s.sec.ID) },
		func() (uint, error) { return f.schema.OwnerOfQuestion(ctx, s.text.ID) },
		func() (uint, error) { return f.schema.OwnerOfOption(ctx, s.checkbox.Options[0].ID) },
	} {
		id, err := lookup()
		require.NoError(t, err)
		assert.Equal(t, f.owner.ID, id)
	}

	_, err := f.schema.OwnerOfSection(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testUser(t *testing.T, f *fixture, email string) uint {
	t.Helper()
	u := &models.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, f.db.Create(u).Error)
	return u.ID
}

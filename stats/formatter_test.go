package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func q(t models.QuestionType, settings string, opts ...string) *models.Question {
	out := &models.Question{ID: 7, Type: t, Title: "Question"}
	if settings != "" {
		out.Settings = []byte(settings)
	}
	for i, v := range opts {
		out.Options = append(out.Options, models.Option{Value: v, Label: "Label " + v, Order: i})
	}
	return out
}

func ans(id uint, value, data string) models.AnswerDetail {
	a := models.AnswerDetail{ResponseID: id, QuestionID: 7, AnswerValue: value}
	if data != "" {
		a.AnswerData = []byte(data)
	}
	return a
}

func TestKindOf(t *testing.T) {
	cases := map[models.QuestionType]Kind{
		models.TypeYesNo:    KindYesNo,
		models.TypeCheckbox: KindMultiChoice,
		models.TypeDropdown: KindMultiChoice,
		models.TypeLikert:   KindLikert,
		models.TypeSlider:   KindNumeric,
		models.TypeMatrix:   KindMatrix,
		models.TypeRanking:  KindRanking,
		models.TypeFile:     KindFile,
		models.TypeTextarea: KindText,
		models.TypeStatic:   KindNone,
		"signature":         KindRaw,
	}
	for typ, want := range cases {
		assert.Equal(t, want, KindOf(typ), string(typ))
	}
}

func TestFormat_YesNo(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeYesNo, ""), []models.AnswerDetail{
		ans(1, "yes", ""), ans(2, "no", ""), ans(3, "yes", ""), ans(4, "", ""),
	})
	got, ok := s.(*YesNoSummary)
	require.True(t, ok)
	assert.Equal(t, 2, got.Yes)
	assert.Equal(t, 1, got.No)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 66.7, got.YesPercent)
}

func TestFormat_CheckboxDenominatorIsSelections(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeCheckbox, "", "a", "b", "c"), []models.AnswerDetail{
		ans(1, `["a","b"]`, `{"values":["a","b"]}`),
		ans(2, `["a"]`, `{"values":["a"]}`),
		ans(3, `["c"]`, `{"values":["c"]}`),
		ans(4, "null", ""),
	})
	got := s.(*ChoiceSummary)
	assert.True(t, got.Multiple)
	assert.Equal(t, 3, got.Respondents)
	assert.Equal(t, 4, got.TotalSelections)
	require.Len(t, got.Options, 3)
	assert.Equal(t, "Label a", got.Options[0].Label)
	assert.Equal(t, 2, got.Options[0].Count)
	assert.Equal(t, 50.0, got.Options[0].Percent)
	assert.Equal(t, 25.0, got.Options[1].Percent)
}

func TestFormat_RadioOther(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeRadio, `{"allow_other":true}`, "a"), []models.AnswerDetail{
		ans(1, "a", ""),
		ans(2, "other", `{"value":"other","otherText":"Freelance"}`),
	})
	got := s.(*ChoiceSummary)
	require.Len(t, got.Options, 2)
	assert.Equal(t, "Other", got.Options[1].Label)
	assert.Equal(t, []string{"Freelance"}, got.OtherTexts)
}

func TestFormat_Likert(t *testing.T) {
	f := NewFormatter(nil)
	question := q(models.TypeLikert, `{"options":["Poor","Fair","Good"],"scale":5}`)
	s := f.Format(question, []models.AnswerDetail{
		ans(1, "3", ""), ans(2, "3", ""), ans(3, "5", ""), ans(4, "1", ""),
	})
	got := s.(*LikertSummary)
	require.Len(t, got.Scale, 5)
	assert.Equal(t, "Good", got.Scale[2].Label)
	assert.Equal(t, 2, got.Scale[2].Count)
	assert.Equal(t, 50.0, got.Scale[2].Percent)
	assert.Equal(t, "Scale 5", got.Scale[4].Label)
	assert.Equal(t, 3.0, got.Mean)
	assert.Equal(t, 4, got.Responses)
}

func TestLikertLabel(t *testing.T) {
	opts := []string{"a", "b", "c"}
	assert.Equal(t, "c", LikertLabel(opts, 5, 3))
	assert.Equal(t, "Scale 4", LikertLabel(opts, 5, 4))
	assert.Equal(t, "Scale 3", LikertLabel(opts, 2, 3))
	assert.Equal(t, "Scale 0", LikertLabel(opts, 5, 0))
}

func TestFormat_Numeric(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeRating, ""), []models.AnswerDetail{
		ans(1, "4", ""), ans(2, "1", ""), ans(3, "3", ""), ans(4, "2", ""), ans(5, "", ""),
	})
	got := s.(*NumericSummary)
	assert.Equal(t, 4, got.Count)
	assert.Equal(t, 2.5, got.Mean)
	assert.Equal(t, 2.5, got.Median)
	assert.Equal(t, 1.0, got.Min)
	assert.Equal(t, 4.0, got.Max)
	assert.Len(t, got.Distribution, 4)
}

func TestNumbers_OddMedianAndEmpty(t *testing.T) {
	assert.Equal(t, 3.0, Numbers([]float64{5, 1, 3}).Median)
	empty := Numbers(nil)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Distribution)
}

func TestFormat_Matrix(t *testing.T) {
	f := NewFormatter(nil)
	question := q(models.TypeMatrix, `{"rows":["Speed","Quality"],"columns":["Low","High"]}`)
	s := f.Format(question, []models.AnswerDetail{
		ans(1, "", `{"Speed":"High","Quality":"Low"}`),
		ans(2, "", `{"Speed":"High"}`),
	})
	got := s.(*MatrixSummary)
	assert.Equal(t, models.MatrixRadio, got.MatrixType)
	assert.Equal(t, 2, got.Respondents)
	assert.Equal(t, []string{"Speed: High; Quality: Low", "Speed: High"}, got.Entries)
	require.Len(t, got.Rows, 2)
	speed := got.Rows[0]
	assert.Equal(t, "Speed", speed.Row)
	assert.Equal(t, 2, speed.Respondents)
	assert.Equal(t, CellCount{Column: "High", Count: 2, Percent: 100}, speed.Cells[1])
	assert.Equal(t, 1, got.Rows[1].Respondents)
}

func TestFormat_MatrixUnconfiguredRowsAreSorted(t *testing.T) {
	f := NewFormatter(nil)
	question := q(models.TypeMatrix, `{"rows":["Speed"],"columns":["Low","High"]}`)
	answers := []models.AnswerDetail{
		ans(1, "", `{"Zeta":"Mid","Speed":"High","Alpha":"Top","Mango":"Low"}`),
		ans(2, "", `{"Beta":"Bad"}`),
	}

	for range 20 {
		got := f.Format(question, answers).(*MatrixSummary)
		rows := make([]string, 0, len(got.Rows))
		for _, r := range got.Rows {
			rows = append(rows, r.Row)
		}
		assert.Equal(t, []string{"Speed", "Alpha", "Beta", "Mango", "Zeta"}, rows)
		assert.Equal(t, []string{"Low", "High", "Bad", "Mid", "Top"}, got.Columns)
		assert.Equal(t, "Speed: High; Alpha: Top; Mango: Low; Zeta: Mid", got.Entries[0])
	}
}

func TestFormat_Ranking(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeRanking, "", "x", "y", "z"), []models.AnswerDetail{
		ans(1, `["y","x"]`, `["y","x"]`),
		ans(2, `["y","x"]`, `["y","x"]`),
		ans(3, `["x","y"]`, `["x","y"]`),
	})
	got := s.(*RankingSummary)
	assert.Equal(t, 3, got.Respondents)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "y", got.Items[0].Value)
	assert.Equal(t, 1.33, got.Items[0].AveragePosition)
	assert.Equal(t, 2, got.Items[0].FirstPlace)
	assert.Equal(t, "x", got.Items[1].Value)
	assert.Equal(t, "z", got.Items[2].Value)
	assert.Zero(t, got.Items[2].Appearances)
}

func TestFormat_Files(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeFile, ""), []models.AnswerDetail{
		ans(1, "cv.pdf, photo.png", `[{"name":"cv.pdf","type":"application/pdf","size":10},{"name":"photo.png","size":3}]`),
		ans(2, "other.pdf", `[{"name":"other.pdf","type":"application/pdf","size":4}]`),
		ans(3, "", ""),
	})
	got := s.(*FileSummary)
	assert.Equal(t, 3, got.TotalFiles)
	assert.Len(t, got.Responses, 2)
	assert.Equal(t, 1.5, got.AveragePerResponse)
	require.Len(t, got.TypeDistribution, 2)
	assert.Equal(t, TypeCount{Type: "application/pdf", Count: 2, Percent: 66.7}, got.TypeDistribution[0])
	assert.Equal(t, "png", got.TypeDistribution[1].Type)
}

func TestFormat_Text(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q(models.TypeText, ""), []models.AnswerDetail{
		ans(1, "héllo", ""), ans(2, "hi", ""), ans(3, "  ", ""),
	})
	got := s.(*TextSummary)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 2, got.MinLength)
	assert.Equal(t, 5, got.MaxLength)
	assert.Equal(t, 3.5, got.AverageLength)
}

func TestFormat_StaticHasNoSummary(t *testing.T) {
	f := NewFormatter(nil)
	assert.Nil(t, f.Format(q(models.TypeStatic, ""), nil))
}

func TestFormat_FallsBackToRaw(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := NewFormatter(logger.New(zap.New(core)))

	s := f.Format(q(models.TypeMatrix, `{"rows":["r"],"columns":["c"]}`), []models.AnswerDetail{
		ans(1, "r: c", `{"r": 5}`),
	})
	got, ok := s.(*RawSummary)
	require.True(t, ok)
	assert.Contains(t, got.Reason, "matrix")
	require.Len(t, got.Values, 1)
	assert.Equal(t, "r: c", got.Values[0].Value)
	assert.Equal(t, 1, logs.FilterMessage("falling back to raw formatter").Len())
}

func TestFormat_UnknownTypeUsesRaw(t *testing.T) {
	f := NewFormatter(nil)
	s := f.Format(q("signature", ""), []models.AnswerDetail{
		ans(1, "", `{"formatted":"J. Doe"}`),
	})
	got := s.(*RawSummary)
	assert.Equal(t, "J. Doe", got.Values[0].Value)
	assert.Empty(t, got.Reason)
}

func TestFormatAll(t *testing.T) {
	f := NewFormatter(nil)
	yes := *q(models.TypeYesNo, "")
	yes.ID = 1
	static := *q(models.TypeStatic, "")
	static.ID = 2
	sections := []models.Section{{ID: 10, Questions: []models.Question{yes, static}}}
	responses := []models.Response{
		{ID: 1, Answers: []models.AnswerDetail{{ResponseID: 1, QuestionID: 1, AnswerValue: "yes"}}},
	}
	out := f.FormatAll(sections, responses)
	require.Len(t, out, 1)
	assert.Equal(t, uint(10), out[0].SectionID)
	assert.Equal(t, KindYesNo, out[0].Kind)
	assert.Equal(t, 1, out[0].Summary.Answered())
}

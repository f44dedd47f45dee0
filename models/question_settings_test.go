package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionSettings(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		s, err := ParseQuestionSettings(TypeRating, []byte(`{"min":1,"max":10}`))
		require.NoError(t, err)
		require.NotNil(t, s.Numeric)
		assert.Equal(t, 1.0, *s.Numeric.Min)
		assert.Equal(t, 10.0, *s.Numeric.Max)
		assert.Nil(t, s.Matrix)
	})

	t.Run("matrix", func(t *testing.T) {
		s, err := ParseQuestionSettings(TypeMatrix, []byte(`{"rows":["A","B"],"columns":["x"],"matrix_type":"checkbox"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, s.Matrix.Rows)
		assert.True(t, s.Matrix.IsCheckbox())
	})

	t.Run("malformed degrades to empty block", func(t *testing.T) {
		s, err := ParseQuestionSettings(TypeLikert, []byte(`{"options":[1,`))
		assert.Error(t, err)
		require.NotNil(t, s.Likert)
		assert.Empty(t, s.Likert.Options)
		assert.Equal(t, DefaultLikertScale, s.Likert.ScalePoints())
	})

	t.Run("types without settings", func(t *testing.T) {
		s, err := ParseQuestionSettings(TypeStatic, []byte(`{"anything":true}`))
		assert.NoError(t, err)
		assert.Equal(t, QuestionSettings{}, s)
	})
}

func TestValidateQuestionSettings(t *testing.T) {
	one, ten := 1.0, 10.0

	tests := []struct {
		name    string
		t       QuestionType
		s       QuestionSettings
		wantErr bool
	}{
		{"numeric ok", TypeSlider, QuestionSettings{Numeric: &NumericSettings{Min: &one, Max: &ten}}, false},
		{"numeric inverted", TypeSlider, QuestionSettings{Numeric: &NumericSettings{Min: &ten, Max: &one}}, true},
		{"likert scale too big", TypeLikert, QuestionSettings{Likert: &LikertSettings{Scale: 11}}, true},
		{"matrix without columns", TypeMatrix, QuestionSettings{Matrix: &MatrixSettings{Rows: []string{"a"}}}, true},
		{"matrix bad type", TypeMatrix, QuestionSettings{Matrix: &MatrixSettings{Rows: []string{"a"}, Columns: []string{"b"}, MatrixType: "grid"}}, true},
		{"checkbox limits", TypeCheckbox, QuestionSettings{Choice: &ChoiceSettings{MinSelect: 3, MaxSelect: 2}}, true},
		{"radio with limits", TypeRadio, QuestionSettings{Choice: &ChoiceSettings{MaxSelect: 2}}, true},
		{"text ok", TypeText, QuestionSettings{Text: &TextSettings{MaxLength: 200}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestionSettings(tt.t, tt.s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

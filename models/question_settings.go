package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type (
	// NumericSettings applies to rating and slider questions.
	NumericSettings struct {
		Min  *float64 `json:"min,omitempty"`
		Max  *float64 `json:"max,omitempty"`
		Step float64  `json:"step,omitempty"`
	}

	LikertSettings struct {
		Options []string `json:"options,omitempty"` // label per scale point, 1-indexed by value
		Scale   int      `json:"scale,omitempty"`
	}

	MatrixSettings struct {
		Rows       []string `json:"rows"`
		Columns    []string `json:"columns"`
		MatrixType string   `json:"matrix_type,omitempty"` // radio | checkbox
	}

	ChoiceSettings struct {
		AllowOther bool `json:"allow_other,omitempty"`
		MinSelect  int  `json:"min_select,omitempty"`
		MaxSelect  int  `json:"max_select,omitempty"`
	}

	FileSettings struct {
		MaxFiles int      `json:"max_files,omitempty"`
		Accept   []string `json:"accept,omitempty"`
	}

	TextSettings struct {
		MaxLength   int    `json:"max_length,omitempty"`
		Placeholder string `json:"placeholder,omitempty"`
	}

	// QuestionSettings is the decoded form of Question.Settings. Only the
	// block matching the question type is set.
	QuestionSettings struct {
		Numeric *NumericSettings
		Likert  *LikertSettings
		Matrix  *MatrixSettings
		Choice  *ChoiceSettings
		File    *FileSettings
		Text    *TextSettings
	}
)

const (
	MatrixRadio    = "radio"
	MatrixCheckbox = "checkbox"

	DefaultLikertScale = 5
)

// ParseQuestionSettings decodes raw into the block for t. On malformed JSON
// it still returns the zero block for t together with the error, so callers
// can log and continue.
func ParseQuestionSettings(t QuestionType, raw []byte) (QuestionSettings, error) {
	var (
		s   QuestionSettings
		dst any
	)
	switch t {
	case TypeRating, TypeSlider:
		s.Numeric = &NumericSettings{}
		dst = s.Numeric
	case TypeLikert:
		s.Likert = &LikertSettings{}
		dst = s.Likert
	case TypeMatrix:
		s.Matrix = &MatrixSettings{}
		dst = s.Matrix
	case TypeRadio, TypeCheckbox, TypeDropdown:
		s.Choice = &ChoiceSettings{}
		dst = s.Choice
	case TypeFile:
		s.File = &FileSettings{}
		dst = s.File
	case TypeText, TypeTextarea:
		s.Text = &TextSettings{}
		dst = s.Text
	default:
		return s, nil
	}

	if len(raw) == 0 || string(raw) == "null" {
		return s, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// reset to the zero block, a partial decode is worse than none
		empty, _ := ParseQuestionSettings(t, nil)
		return empty, fmt.Errorf("settings for %s question: %w", t, err)
	}
	return s, nil
}

// ValidateQuestionSettings rejects settings that do not make sense for the type.
func ValidateQuestionSettings(t QuestionType, s QuestionSettings) error {
	switch {
	case s.Numeric != nil:
		if s.Numeric.Min != nil && s.Numeric.Max != nil && *s.Numeric.Min > *s.Numeric.Max {
			return errors.New("min must not be greater than max")
		}
		if s.Numeric.Step < 0 {
			return errors.New("step must not be negative")
		}
	case s.Likert != nil:
		if s.Likert.Scale != 0 && (s.Likert.Scale < 2 || s.Likert.Scale > 10) {
			return errors.New("scale must be between 2 and 10")
		}
	case s.Matrix != nil:
		if len(s.Matrix.Rows) == 0 || len(s.Matrix.Columns) == 0 {
			return errors.New("matrix needs at least one row and one column")
		}
		switch s.Matrix.MatrixType {
		case "", MatrixRadio, MatrixCheckbox:
		default:
			return fmt.Errorf("unknown matrix_type %q", s.Matrix.MatrixType)
		}
	case s.Choice != nil:
		if s.Choice.MinSelect < 0 || s.Choice.MaxSelect < 0 {
			return errors.New("selection limits must not be negative")
		}
		if s.Choice.MaxSelect > 0 && s.Choice.MaxSelect < s.Choice.MinSelect {
			return errors.New("max_select must not be less than min_select")
		}
		if t != TypeCheckbox && (s.Choice.MinSelect > 0 || s.Choice.MaxSelect > 0) {
			return errors.New("selection limits only apply to checkbox questions")
		}
	case s.File != nil:
		if s.File.MaxFiles < 0 {
			return errors.New("max_files must not be negative")
		}
	case s.Text != nil:
		if s.Text.MaxLength < 0 {
			return errors.New("max_length must not be negative")
		}
	}
	return nil
}

// ScalePoints is the number of points on the likert scale.
func (s *LikertSettings) ScalePoints() int {
	if s == nil || s.Scale == 0 {
		return DefaultLikertScale
	}
	return s.Scale
}

// IsCheckbox reports whether each row accepts several columns.
func (s *MatrixSettings) IsCheckbox() bool {
	return s != nil && s.MatrixType == MatrixCheckbox
}

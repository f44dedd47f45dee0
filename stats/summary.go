// Package stats computes per-question statistics. Each question type maps to
// a Kind, and each Kind has one handler in the Formatter dispatch table.
package stats

import (
	"math"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/models"
)

type Kind string

const (
	KindYesNo       Kind = "yesno"
	KindMultiChoice Kind = "multichoice"
	KindLikert      Kind = "likert"
	KindNumeric     Kind = "numeric"
	KindMatrix      Kind = "matrix"
	KindRanking     Kind = "ranking"
	KindFile        Kind = "file"
	KindText        Kind = "text"
	KindRaw         Kind = "raw"
	KindNone        Kind = "none"
)

// KindOf maps a question type to its statistics kind. Unknown types map to KindRaw.
func KindOf(t models.QuestionType) Kind {
	switch t {
	case models.TypeYesNo:
		return KindYesNo
	case models.TypeRadio, models.TypeCheckbox, models.TypeDropdown:
		return KindMultiChoice
	case models.TypeLikert:
		return KindLikert
	case models.TypeRating, models.TypeSlider:
		return KindNumeric
	case models.TypeMatrix:
		return KindMatrix
	case models.TypeRanking:
		return KindRanking
	case models.TypeFile:
		return KindFile
	case models.TypeText, models.TypeTextarea, models.TypeDate:
		return KindText
	case models.TypeStatic:
		return KindNone
	}
	return KindRaw
}

// Summary is one of the *Summary types below.
type Summary interface {
	Kind() Kind
	// Answered is the number of non-skipped answers that went into the summary.
	Answered() int
}

type (
	YesNoSummary struct {
		Yes        int     `json:"yes"`
		No         int     `json:"no"`
		Total      int     `json:"total"`
		YesPercent float64 `json:"yes_percent"`
		NoPercent  float64 `json:"no_percent"`
	}

	OptionCount struct {
		Value   string  `json:"value"`
		Label   string  `json:"label"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}

	// ChoiceSummary percentages are relative to TotalSelections, so a
	// respondent who ticks two boxes adds two to the denominator.
	ChoiceSummary struct {
		Options         []OptionCount `json:"options"`
		TotalSelections int           `json:"total_selections"`
		Respondents     int           `json:"respondents"`
		Multiple        bool          `json:"multiple"`
		OtherTexts      []string      `json:"other_texts,omitempty"`
	}

	ScaleCount struct {
		Value   int     `json:"value"`
		Label   string  `json:"label"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}

	LikertSummary struct {
		Scale     []ScaleCount `json:"scale"`
		Mean      float64      `json:"mean"`
		Responses int          `json:"responses"`
	}

	ValueCount struct {
		Value float64 `json:"value"`
		Count int     `json:"count"`
	}

	NumericSummary struct {
		Count        int          `json:"count"`
		Sum          float64      `json:"sum"`
		Mean         float64      `json:"mean"`
		Median       float64      `json:"median"`
		Min          float64      `json:"min"`
		Max          float64      `json:"max"`
		Distribution []ValueCount `json:"distribution"`
	}

	CellCount struct {
		Column  string  `json:"column"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}

	MatrixRow struct {
		Row         string      `json:"row"`
		Cells       []CellCount `json:"cells"`
		Respondents int         `json:"respondents"`
	}

	MatrixSummary struct {
		MatrixType  string      `json:"matrix_type"`
		Columns     []string    `json:"columns"`
		Rows        []MatrixRow `json:"rows"`
		Entries     []string    `json:"entries"`
		Respondents int         `json:"respondents"`
	}

	RankedItem struct {
		Value           string  `json:"value"`
		Label           string  `json:"label"`
		AveragePosition float64 `json:"average_position"`
		FirstPlace      int     `json:"first_place"`
		Appearances     int     `json:"appearances"`
	}

	RankingSummary struct {
		Items       []RankedItem `json:"items"`
		Respondents int          `json:"respondents"`
	}

	FileResponse struct {
		ResponseID uint             `json:"response_id"`
		Files      []answer.FileRef `json:"files"`
	}

	TypeCount struct {
		Type    string  `json:"type"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}

	FileSummary struct {
		Responses          []FileResponse `json:"responses"`
		TypeDistribution   []TypeCount    `json:"type_distribution"`
		TotalFiles         int            `json:"total_files"`
		AveragePerResponse float64        `json:"average_per_response"`
	}

	TextEntry struct {
		ResponseID uint   `json:"response_id"`
		Value      string `json:"value"`
	}

	TextSummary struct {
		Values        []TextEntry `json:"values"`
		Count         int         `json:"count"`
		AverageLength float64     `json:"average_length"`
		MinLength     int         `json:"min_length"`
		MaxLength     int         `json:"max_length"`
	}

	// RawSummary is the fallback for unknown types and malformed payloads.
	RawSummary struct {
		Values []TextEntry `json:"values"`
		Reason string      `json:"reason,omitempty"`
	}
)

func (*YesNoSummary) Kind() Kind   { return KindYesNo }
func (*ChoiceSummary) Kind() Kind  { return KindMultiChoice }
func (*LikertSummary) Kind() Kind  { return KindLikert }
func (*NumericSummary) Kind() Kind { return KindNumeric }
func (*MatrixSummary) Kind() Kind  { return KindMatrix }
func (*RankingSummary) Kind() Kind { return KindRanking }
func (*FileSummary) Kind() Kind    { return KindFile }
func (*TextSummary) Kind() Kind    { return KindText }
func (*RawSummary) Kind() Kind     { return KindRaw }

func (s *YesNoSummary) Answered() int   { return s.Total }
func (s *ChoiceSummary) Answered() int  { return s.Respondents }
func (s *LikertSummary) Answered() int  { return s.Responses }
func (s *NumericSummary) Answered() int { return s.Count }
func (s *MatrixSummary) Answered() int  { return s.Respondents }
func (s *RankingSummary) Answered() int { return s.Respondents }
func (s *FileSummary) Answered() int    { return len(s.Responses) }
func (s *TextSummary) Answered() int    { return s.Count }
func (s *RawSummary) Answered() int     { return len(s.Values) }

// QuestionSummary pairs a question with its summary for renderers.
type QuestionSummary struct {
	QuestionID uint                `json:"question_id"`
	SectionID  uint                `json:"section_id"`
	Title      string              `json:"title"`
	Type       models.QuestionType `json:"type"`
	Kind       Kind                `json:"kind"`
	Summary    Summary             `json:"stats"`
}

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

// Percent turns a 0..1 ratio into a percentage with one decimal.
func Percent(ratio float64) float64 {
	return round1(ratio * 100)
}

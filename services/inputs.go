package services

import (
	"encoding/json"
	"time"

	"github.com/vnkhanh/tracer-study/models"
)

// NullableTime tells an absent field apart from an explicit null in a patch.
type NullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *NullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Value = &t
	return nil
}

// QuestionnaireInput is used for both create and patch; nil fields are left
// untouched on update.
type QuestionnaireInput struct {
	Title       *string         `json:"title"`
	Slug        *string         `json:"slug"`
	Description *string         `json:"description"`
	StartDate   NullableTime    `json:"start_date"`
	EndDate     NullableTime    `json:"end_date"`
	IsTemplate  *bool           `json:"is_template"`
	Settings    json.RawMessage `json:"settings"`
}

type QuestionnaireFilter struct {
	Status   models.QuestionnaireStatus
	Template *bool
	Search   string
	Page     int
	Limit    int
}

type SectionInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type OptionInput struct {
	Value *string `json:"value"`
	Label *string `json:"label"`
}

type QuestionInput struct {
	Type        *models.QuestionType `json:"type"`
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Required    *bool                `json:"required"`
	Settings    json.RawMessage      `json:"settings"`
	// Options is only read on create; use the option endpoints afterwards.
	Options []OptionInput `json:"options"`
}

type LogicInput struct {
	ConditionType    models.ConditionType `json:"condition_type"`
	ConditionValue   string               `json:"condition_value"`
	ActionType       models.ActionType    `json:"action_type"`
	TargetQuestionID *uint                `json:"target_question_id"`
	TargetSectionID  *uint                `json:"target_section_id"`
}

// RespondentMeta describes who is answering and from where.
type RespondentMeta struct {
	UserID    *uint
	Name      string
	Email     string
	IPAddress string
	UserAgent string
}

type SubmitRequest struct {
	Slug                 string                   `json:"slug"`
	RespondentIdentifier string                   `json:"respondent_identifier"`
	RespondentName       string                   `json:"respondent_name"`
	RespondentEmail      string                   `json:"respondent_email"`
	Answers              map[uint]json.RawMessage `json:"answers"`
	ResponseData         json.RawMessage          `json:"response_data"`
}

type ResponseFilter struct {
	From          *time.Time
	To            *time.Time
	CompletedOnly bool
	Page          int
	Limit         int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func paginate(page, limit int) (offset, size int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit, limit
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type Response struct {
	ID                   uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionnaireID      uint           `gorm:"column:questionnaire_id;index;not null" json:"questionnaire_id"`
	UserID               *uint          `gorm:"column:user_id;index" json:"user_id"`
	RespondentName       string         `gorm:"column:respondent_name;size:255" json:"respondent_name"`
	RespondentEmail      string         `gorm:"column:respondent_email;size:255" json:"respondent_email"`
	RespondentIdentifier string         `gorm:"column:respondent_identifier;size:255;index" json:"-"`
	ResponseData         datatypes.JSON `gorm:"column:response_data" json:"response_data"`
	CompletedAt          *time.Time     `gorm:"column:completed_at" json:"completed_at"`
	IPAddress            string         `gorm:"column:ip_address;size:45" json:"ip_address"`
	UserAgent            string         `gorm:"column:user_agent;type:text" json:"user_agent"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	User    *User          `gorm:"foreignKey:UserID;references:ID" json:"-"`
	Answers []AnswerDetail `gorm:"foreignKey:ResponseID" json:"answers,omitempty"`
}

func (Response) TableName() string {
	return "responses"
}

func (r *Response) IsComplete() bool {
	return r.CompletedAt != nil
}

// Respondent is the best display name for the person behind the response.
func (r *Response) Respondent() string {
	switch {
	case r.RespondentName != "":
		return r.RespondentName
	case r.RespondentEmail != "":
		return r.RespondentEmail
	case r.User != nil:
		return r.User.Name
	}
	return "Anonymous"
}

// AnswerDetail is the single answer row for a (response, question) pair.
type AnswerDetail struct {
	ID              uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResponseID      uint           `gorm:"column:response_id;not null;uniqueIndex:idx_answer_response_question" json:"response_id"`
	QuestionID      uint           `gorm:"column:question_id;not null;uniqueIndex:idx_answer_response_question;index" json:"question_id"`
	QuestionnaireID uint           `gorm:"column:questionnaire_id;not null;index" json:"questionnaire_id"`
	AnswerValue     string         `gorm:"column:answer_value;type:text" json:"answer_value"`
	AnswerData      datatypes.JSON `gorm:"column:answer_data" json:"answer_data"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AnswerDetail) TableName() string {
	return "answer_details"
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
	TypeRadio    QuestionType = "radio"
	TypeCheckbox QuestionType = "checkbox"
	TypeDropdown QuestionType = "dropdown"
	TypeRating   QuestionType = "rating"
	TypeDate     QuestionType = "date"
	TypeFile     QuestionType = "file"
	TypeMatrix   QuestionType = "matrix"
	TypeLikert   QuestionType = "likert"
	TypeYesNo    QuestionType = "yes_no"
	TypeSlider   QuestionType = "slider"
	TypeRanking  QuestionType = "ranking"
	TypeStatic   QuestionType = "static"
)

var questionTypes = map[QuestionType]bool{
	TypeText: true, TypeTextarea: true, TypeRadio: true, TypeCheckbox: true,
	TypeDropdown: true, TypeRating: true, TypeDate: true, TypeFile: true,
	TypeMatrix: true, TypeLikert: true, TypeYesNo: true, TypeSlider: true,
	TypeRanking: true, TypeStatic: true,
}

func (t QuestionType) Valid() bool {
	return questionTypes[t]
}

// HasOptions reports whether the type draws its answers from Option rows.
func (t QuestionType) HasOptions() bool {
	switch t {
	case TypeRadio, TypeCheckbox, TypeDropdown, TypeMatrix, TypeLikert, TypeRanking:
		return true
	}
	return false
}

// Answerable is false for display-only blocks.
func (t QuestionType) Answerable() bool {
	return t != TypeStatic
}

type Question struct {
	ID              uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SectionID       uint           `gorm:"column:section_id;index;not null" json:"section_id"`
	QuestionnaireID uint           `gorm:"column:questionnaire_id;index;not null" json:"questionnaire_id"`
	Type            QuestionType   `gorm:"column:type;size:30;not null" json:"type"`
	Title           string         `gorm:"column:title;type:text;not null" json:"title"`
	Description     string         `gorm:"column:description;type:text" json:"description"`
	Required        bool           `gorm:"column:required;not null;default:false" json:"required"`
	Order           int            `gorm:"column:sort_order;not null;default:0" json:"order"`
	Settings        datatypes.JSON `gorm:"column:settings" json:"settings"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Options []Option        `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	Logic   []QuestionLogic `gorm:"foreignKey:QuestionID" json:"logic,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

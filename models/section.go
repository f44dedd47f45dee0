package models

import "time"

type Section struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionnaireID uint      `gorm:"column:questionnaire_id;index;not null" json:"questionnaire_id"`
	Title           string    `gorm:"column:title;size:255;not null" json:"title"`
	Description     string    `gorm:"column:description;type:text" json:"description"`
	Order           int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Questions []Question `gorm:"foreignKey:SectionID" json:"questions,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}

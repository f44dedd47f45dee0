package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionnaireStatus string

const (
	StatusDraft     QuestionnaireStatus = "draft"
	StatusPublished QuestionnaireStatus = "published"
	StatusClosed    QuestionnaireStatus = "closed"
)

func (s QuestionnaireStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusClosed:
		return true
	}
	return false
}

type Questionnaire struct {
	ID          uint                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string              `gorm:"column:title;size:255;not null" json:"title"`
	Slug        *string             `gorm:"column:slug;size:191;uniqueIndex" json:"slug"`
	Description string              `gorm:"column:description;type:text" json:"description"`
	Status      QuestionnaireStatus `gorm:"column:status;size:20;not null;default:'draft'" json:"status"`
	StartDate   *time.Time          `gorm:"column:start_date" json:"start_date"`
	EndDate     *time.Time          `gorm:"column:end_date" json:"end_date"`
	IsTemplate  bool                `gorm:"column:is_template;not null;default:false" json:"is_template"`
	Settings    datatypes.JSON      `gorm:"column:settings" json:"settings"`
	// Snapshot is a projection of the normalized rows, rebuilt on every schema
	// mutation. It is never written independently of them.
	Snapshot  datatypes.JSON `gorm:"column:snapshot" json:"-"`
	OwnerID   uint           `gorm:"column:owner_id;index;not null" json:"owner_id"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Owner    *User     `gorm:"foreignKey:OwnerID;references:ID" json:"-"`
	Sections []Section `gorm:"foreignKey:QuestionnaireID" json:"sections,omitempty"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

// IsActive reports whether the questionnaire accepts responses at now. Both
// window bounds are inclusive and an absent bound is open on that side.
func (q *Questionnaire) IsActive(now time.Time) bool {
	if q.Status != StatusPublished {
		return false
	}
	if q.StartDate != nil && now.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && now.After(*q.EndDate) {
		return false
	}
	return true
}

func (q *Questionnaire) SlugValue() string {
	if q.Slug == nil {
		return ""
	}
	return *q.Slug
}

package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vnkhanh/tracer-study/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SnapshotTree is the denormalized JSON projection of a questionnaire that
// the fill UI renders from. It never carries row timestamps so that a rebuild
// from unchanged rows yields identical bytes.
type SnapshotTree struct {
	ID          uint                       `json:"id"`
	Title       string                     `json:"title"`
	Slug        string                     `json:"slug,omitempty"`
	Description string                     `json:"description,omitempty"`
	Status      models.QuestionnaireStatus `json:"status"`
	StartDate   *time.Time                 `json:"start_date,omitempty"`
	EndDate     *time.Time                 `json:"end_date,omitempty"`
	Settings    json.RawMessage            `json:"settings,omitempty"`
	Sections    []SnapshotSection          `json:"sections"`
}

type SnapshotSection struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Order       int                `json:"order"`
	Questions   []SnapshotQuestion `json:"questions"`
}

type SnapshotQuestion struct {
	ID          uint                `json:"id"`
	Type        models.QuestionType `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Required    bool                `json:"required"`
	Order       int                 `json:"order"`
	Settings    json.RawMessage     `json:"settings,omitempty"`
	Options     []SnapshotOption    `json:"options,omitempty"`
	Logic       []SnapshotLogic     `json:"logic,omitempty"`
}

type SnapshotOption struct {
	ID    uint   `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

type SnapshotLogic struct {
	ID               uint                 `json:"id"`
	ConditionType    models.ConditionType `json:"condition_type"`
	ConditionValue   string               `json:"condition_value"`
	ActionType       models.ActionType    `json:"action_type"`
	TargetQuestionID *uint                `json:"target_question_id,omitempty"`
	TargetSectionID  *uint                `json:"target_section_id,omitempty"`
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}

// BuildSnapshot projects a questionnaire loaded with loadTree.
func BuildSnapshot(q *models.Questionnaire) *SnapshotTree {
	tree := &SnapshotTree{
		ID:          q.ID,
		Title:       q.Title,
		Slug:        q.SlugValue(),
		Description: q.Description,
		Status:      q.Status,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		Settings:    rawJSON(q.Settings),
		Sections:    make([]SnapshotSection, 0, len(q.Sections)),
	}
	for _, sec := range q.Sections {
		ss := SnapshotSection{
			ID:          sec.ID,
			Title:       sec.Title,
			Description: sec.Description,
			Order:       sec.Order,
			Questions:   make([]SnapshotQuestion, 0, len(sec.Questions)),
		}
		for _, qu := range sec.Questions {
			sq := SnapshotQuestion{
				ID:          qu.ID,
				Type:        qu.Type,
				Title:       qu.Title,
				Description: qu.Description,
				Required:    qu.Required,
				Order:       qu.Order,
				Settings:    rawJSON(qu.Settings),
			}
			for _, o := range qu.Options {
				sq.Options = append(sq.Options, SnapshotOption{ID: o.ID, Value: o.Value, Label: o.Label, Order: o.Order})
			}
			for _, l := range qu.Logic {
				sq.Logic = append(sq.Logic, SnapshotLogic{
					ID:               l.ID,
					ConditionType:    l.ConditionType,
					ConditionValue:   l.ConditionValue,
					ActionType:       l.ActionType,
					TargetQuestionID: l.TargetQuestionID,
					TargetSectionID:  l.TargetSectionID,
				})
			}
			ss.Questions = append(ss.Questions, sq)
		}
		tree.Sections = append(tree.Sections, ss)
	}
	return tree
}

func byOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// loadTree reads a questionnaire with every child in display order.
func loadTree(db *gorm.DB, id uint) (*models.Questionnaire, error) {
	var q models.Questionnaire
	err := db.
		Preload("Sections", byOrder).
		Preload("Sections.Questions", byOrder).
		Preload("Sections.Questions.Options", byOrder).
		Preload("Sections.Questions.Logic", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&q, id).Error
	if err != nil {
		return nil, notFound(err, "questionnaire")
	}
	return &q, nil
}

// rebuildSnapshot regenerates the snapshot column from the rows visible to tx.
func rebuildSnapshot(tx *gorm.DB, id uint) ([]byte, error) {
	q, err := loadTree(tx, id)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(BuildSnapshot(q))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	err = tx.Model(&models.Questionnaire{}).
		Where("id = ?", id).
		UpdateColumn("snapshot", datatypes.JSON(b)).Error
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	return b, nil
}

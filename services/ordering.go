package services

import (
	"context"
	"fmt"

	"github.com/vnkhanh/tracer-study/models"
	"gorm.io/gorm"
)

func childIDs(tx *gorm.DB, model any, parentCol string, parentID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(model).
		Where(parentCol+" = ?", parentID).
		Order("sort_order ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return ids, nil
}

func writeOrder(tx *gorm.DB, model any, ids []uint) error {
	for pos, id := range ids {
		if err := tx.Model(model).Where("id = ?", id).UpdateColumn("sort_order", pos).Error; err != nil {
			return fmt.Errorf("write order: %w", err)
		}
	}
	return nil
}

// compact rewrites the children of parent to 0..n-1 keeping their relative order.
func compact(tx *gorm.DB, model any, parentCol string, parentID uint) error {
	ids, err := childIDs(tx, model, parentCol, parentID)
	if err != nil {
		return err
	}
	return writeOrder(tx, model, ids)
}

// isPermutation reports whether ids lists every element of current exactly once.
func isPermutation(current, ids []uint) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[uint]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

func reorder(tx *gorm.DB, model any, parentCol string, parentID uint, ids []uint) error {
	current, err := childIDs(tx, model, parentCol, parentID)
	if err != nil {
		return err
	}
	if !isPermutation(current, ids) {
		return invalidField("ids", fmt.Sprintf("must list each of the %d current items exactly once", len(current)))
	}
	return writeOrder(tx, model, ids)
}

func (s *SchemaService) ReorderSections(ctx context.Context, questionnaireID uint, ids []uint) error {
	return s.mutate(ctx, questionnaireID, func(tx *gorm.DB) error {
		return reorder(tx, &models.Section{}, "questionnaire_id", questionnaireID, ids)
	})
}

func (s *SchemaService) ReorderQuestions(ctx context.Context, sectionID uint, ids []uint) error {
	sec, err := s.questionnaireOfSection(s.db.WithContext(ctx), sectionID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, sec.QuestionnaireID, func(tx *gorm.DB) error {
		return reorder(tx, &models.Question{}, "section_id", sectionID, ids)
	})
}

func (s *SchemaService) ReorderOptions(ctx context.Context, questionID uint, ids []uint) error {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), questionID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		return reorder(tx, &models.Option{}, "question_id", questionID, ids)
	})
}

// MoveQuestion places a question at position (clamped) inside target, which
// must belong to the same questionnaire. Both sections end up compacted.
func (s *SchemaService) MoveQuestion(ctx context.Context, questionID, targetSectionID uint, position int) (*models.Question, error) {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), questionID)
	if err != nil {
		return nil, err
	}
	target, err := s.questionnaireOfSection(s.db.WithContext(ctx), targetSectionID)
	if err != nil {
		return nil, err
	}
	if target.QuestionnaireID != q.QuestionnaireID {
		return nil, invalidField("section_id", "target section belongs to another questionnaire")
	}

	source := q.SectionID
	err = s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		siblings, err := childIDs(tx, &models.Question{}, "section_id", targetSectionID)
		if err != nil {
			return err
		}
		rest := make([]uint, 0, len(siblings)+1)
		for _, id := range siblings {
			if id != questionID {
				rest = append(rest, id)
			}
		}
		if position < 0 {
			position = 0
		}
		if position > len(rest) {
			position = len(rest)
		}
		ordered := append(rest[:position:position], append([]uint{questionID}, rest[position:]...)...)

		if err := tx.Model(q).UpdateColumn("section_id", targetSectionID).Error; err != nil {
			return err
		}
		if err := writeOrder(tx, &models.Question{}, ordered); err != nil {
			return err
		}
		if source != targetSectionID {
			return compact(tx, &models.Question{}, "section_id", source)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	q.SectionID = targetSectionID
	q.Order = position
	return q, nil
}

package services

import (
	"context"

	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Clone deep-copies a questionnaire for newOwnerID. The copy is a draft, not a
// template, and its logic points at the copied rows. Its slug is the next free
// numbered suffix of the source slug, or a random code once those run out.
func (s *SchemaService) Clone(ctx context.Context, id, newOwnerID uint) (*models.Questionnaire, error) {
	var (
		dst  *models.Questionnaire
		snap []byte
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := loadTree(tx, id)
		if err != nil {
			return err
		}

		base := src.SlugValue()
		if base == "" {
			base = utils.Slugify(src.Title)
		}
		slug, err := derivedSlug(tx, base, 0)
		if err != nil {
			return err
		}

		dst = &models.Questionnaire{
			Title:       src.Title,
			Slug:        &slug,
			Description: src.Description,
			Status:      models.StatusDraft,
			StartDate:   src.StartDate,
			EndDate:     src.EndDate,
			IsTemplate:  false,
			Settings:    src.Settings,
			OwnerID:     newOwnerID,
		}
		if err := tx.Create(dst).Error; err != nil {
			return duplicateSlug(err)
		}

		sections := make(map[uint]uint, len(src.Sections))
		questions := make(map[uint]uint)
		var pending []models.QuestionLogic

		for _, sec := range src.Sections {
			ns := models.Section{
				QuestionnaireID: dst.ID,
				Title:           sec.Title,
				Description:     sec.Description,
				Order:           sec.Order,
			}
			if err := tx.Create(&ns).Error; err != nil {
				return err
			}
			sections[sec.ID] = ns.ID

			for _, q := range sec.Questions {
				nq := models.Question{
					SectionID:       ns.ID,
					QuestionnaireID: dst.ID,
					Type:            q.Type,
					Title:           q.Title,
					Description:     q.Description,
					Required:        q.Required,
					Order:           q.Order,
					Settings:        q.Settings,
				}
				if err := tx.Create(&nq).Error; err != nil {
					return err
				}
				questions[q.ID] = nq.ID

				if len(q.Options) > 0 {
					opts := make([]models.Option, 0, len(q.Options))
					for _, o := range q.Options {
						opts = append(opts, models.Option{QuestionID: nq.ID, Value: o.Value, Label: o.Label, Order: o.Order})
					}
					if err := tx.Create(&opts).Error; err != nil {
						return err
					}
				}
				for _, l := range q.Logic {
					l.ID = 0
					l.QuestionID = nq.ID
					pending = append(pending, l)
				}
			}
		}

		// Targets are remapped once every question has its new id.
		for i := range pending {
			pending[i].TargetQuestionID = remap(questions, pending[i].TargetQuestionID)
			pending[i].TargetSectionID = remap(sections, pending[i].TargetSectionID)
		}
		if len(pending) > 0 {
			if err := tx.Create(&pending).Error; err != nil {
				return err
			}
		}

		snap, err = rebuildSnapshot(tx, dst.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.storeCache(ctx, dst.ID, snap)

	s.logger.Info("questionnaire cloned",
		zap.Uint("source_id", id),
		zap.Uint("questionnaire_id", dst.ID),
		zap.Uint("owner_id", newOwnerID))
	return dst, nil
}

func remap(ids map[uint]uint, old *uint) *uint {
	if old == nil {
		return nil
	}
	if n, ok := ids[*old]; ok {
		return &n
	}
	return nil
}

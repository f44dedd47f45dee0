package services

import (
	"context"
	"fmt"

	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// nextOrder is max(sort_order)+1 among the children of parent, 0 for the first.
func nextOrder(tx *gorm.DB, model any, parentCol string, parentID uint) (int, error) {
	var max int
	err := tx.Model(model).
		Where(parentCol+" = ?", parentID).
		Select("COALESCE(MAX(sort_order), -1)").
		Row().Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next order: %w", err)
	}
	return max + 1, nil
}

func (s *SchemaService) questionnaireOfSection(db *gorm.DB, id uint) (*models.Section, error) {
	var sec models.Section
	if err := db.First(&sec, id).Error; err != nil {
		return nil, notFound(err, "section")
	}
	return &sec, nil
}

func (s *SchemaService) questionnaireOfQuestion(db *gorm.DB, id uint) (*models.Question, error) {
	var q models.Question
	if err := db.First(&q, id).Error; err != nil {
		return nil, notFound(err, "question")
	}
	return &q, nil
}

func (s *SchemaService) questionOfOption(db *gorm.DB, id uint) (*models.Option, *models.Question, error) {
	var o models.Option
	if err := db.First(&o, id).Error; err != nil {
		return nil, nil, notFound(err, "option")
	}
	q, err := s.questionnaireOfQuestion(db, o.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	return &o, q, nil
}

// Sections

func (s *SchemaService) CreateSection(ctx context.Context, questionnaireID uint, in SectionInput) (*models.Section, error) {
	sec := &models.Section{QuestionnaireID: questionnaireID}
	v := &ValidationError{}
	applyTitle(v, "title", in.Title, &sec.Title, true)
	sec.Description = trimmed(in.Description)
	if err := v.Err(); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, questionnaireID, func(tx *gorm.DB) error {
		var q models.Questionnaire
		if err := tx.Select("id").First(&q, questionnaireID).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		order, err := nextOrder(tx, &models.Section{}, "questionnaire_id", questionnaireID)
		if err != nil {
			return err
		}
		sec.Order = order
		return tx.Create(sec).Error
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

func (s *SchemaService) UpdateSection(ctx context.Context, id uint, in SectionInput) (*models.Section, error) {
	sec, err := s.questionnaireOfSection(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	v := &ValidationError{}
	applyTitle(v, "title", in.Title, &sec.Title, false)
	if in.Description != nil {
		sec.Description = trimmed(in.Description)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, sec.QuestionnaireID, func(tx *gorm.DB) error {
		return tx.Model(sec).Select("title", "description").Updates(sec).Error
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// deleteQuestions removes questions with their options, logic (own and
// pointing at them) and answers.
func deleteQuestions(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	steps := []struct {
		model any
		where string
		args  []any
	}{
		{&models.QuestionLogic{}, "question_id IN ? OR target_question_id IN ?", []any{ids, ids}},
		{&models.Option{}, "question_id IN ?", []any{ids}},
		{&models.AnswerDetail{}, "question_id IN ?", []any{ids}},
		{&models.Question{}, "id IN ?", []any{ids}},
	}
	for _, st := range steps {
		if err := tx.Where(st.where, st.args...).Delete(st.model).Error; err != nil {
			return fmt.Errorf("delete %T: %w", st.model, err)
		}
	}
	return nil
}

func (s *SchemaService) DeleteSection(ctx context.Context, id uint) error {
	sec, err := s.questionnaireOfSection(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	return s.mutate(ctx, sec.QuestionnaireID, func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Question{}).Where("section_id = ?", id).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := deleteQuestions(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("target_section_id = ?", id).Delete(&models.QuestionLogic{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Section{}, id).Error; err != nil {
			return err
		}
		return compact(tx, &models.Section{}, "questionnaire_id", sec.QuestionnaireID)
	})
}

// Questions

// validateQuestionSettings checks raw against t. Empty raw is the zero block,
// so types that need settings (matrix) are rejected without them.
func validateQuestionSettings(v *ValidationError, t models.QuestionType, raw []byte) {
	settings, err := models.ParseQuestionSettings(t, raw)
	if err != nil {
		v.Add("settings", err.Error())
		return
	}
	if err := models.ValidateQuestionSettings(t, settings); err != nil {
		v.Add("settings", err.Error())
	}
}

func optionRows(v *ValidationError, in []OptionInput) []models.Option {
	out := make([]models.Option, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, o := range in {
		field := fmt.Sprintf("options.%d", i)
		opt, ok := optionRow(v, field, o)
		if !ok {
			continue
		}
		if seen[opt.Value] {
			v.Add(field+".value", "duplicate option value")
			continue
		}
		seen[opt.Value] = true
		opt.Order = len(out)
		out = append(out, opt)
	}
	return out
}

// optionRow derives a missing value from the label.
func optionRow(v *ValidationError, field string, in OptionInput) (models.Option, bool) {
	label := trimmed(in.Label)
	value := trimmed(in.Value)
	if label == "" {
		v.Add(field+".label", "must not be empty")
		return models.Option{}, false
	}
	if value == "" {
		if value = utils.Slugify(label); value == "" {
			value = label
		}
	}
	return models.Option{Value: value, Label: label}, true
}

func (s *SchemaService) CreateQuestion(ctx context.Context, sectionID uint, in QuestionInput) (*models.Question, error) {
	sec, err := s.questionnaireOfSection(s.db.WithContext(ctx), sectionID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{SectionID: sectionID, QuestionnaireID: sec.QuestionnaireID}
	v := &ValidationError{}
	switch {
	case in.Type == nil:
		v.Add("type", "is required")
	case !in.Type.Valid():
		v.Add("type", fmt.Sprintf("unknown question type %q", *in.Type))
	default:
		q.Type = *in.Type
	}
	applyTitle(v, "title", in.Title, &q.Title, true)
	q.Description = trimmed(in.Description)
	if in.Required != nil {
		q.Required = *in.Required && q.Type.Answerable()
	}
	if q.Type != "" {
		validateQuestionSettings(v, q.Type, in.Settings)
	}
	if len(in.Settings) > 0 {
		q.Settings = datatypes.JSON(in.Settings)
	}
	if len(in.Options) > 0 && q.Type != "" && !q.Type.HasOptions() {
		v.Add("options", fmt.Sprintf("%s questions do not take options", q.Type))
	}
	opts := optionRows(v, in.Options)
	if err := v.Err(); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, sec.QuestionnaireID, func(tx *gorm.DB) error {
		order, err := nextOrder(tx, &models.Question{}, "section_id", sectionID)
		if err != nil {
			return err
		}
		q.Order = order
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		for i := range opts {
			opts[i].QuestionID = q.ID
		}
		if len(opts) > 0 {
			if err := tx.Create(&opts).Error; err != nil {
				return err
			}
		}
		q.Options = opts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SchemaService) UpdateQuestion(ctx context.Context, id uint, in QuestionInput) (*models.Question, error) {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	oldType := q.Type

	v := &ValidationError{}
	if in.Type != nil {
		if !in.Type.Valid() {
			v.Add("type", fmt.Sprintf("unknown question type %q", *in.Type))
		} else {
			q.Type = *in.Type
		}
	}
	applyTitle(v, "title", in.Title, &q.Title, false)
	if in.Description != nil {
		q.Description = trimmed(in.Description)
	}
	if in.Required != nil {
		q.Required = *in.Required
	}
	if !q.Type.Answerable() {
		q.Required = false
	}
	if len(in.Settings) > 0 {
		q.Settings = datatypes.JSON(in.Settings)
	}
	if len(in.Settings) > 0 || q.Type != oldType {
		validateQuestionSettings(v, q.Type, q.Settings)
	}
	if len(in.Options) > 0 {
		v.Add("options", "use the option endpoints to change options")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		if q.Type != oldType {
			var n int64
			if err := tx.Model(&models.AnswerDetail{}).Where("question_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return invalidField("type", "cannot change the type of a question that has answers")
			}
			if !q.Type.HasOptions() {
				if err := tx.Where("question_id = ?", id).Delete(&models.Option{}).Error; err != nil {
					return err
				}
			}
		}
		return tx.Model(q).Select("type", "title", "description", "required", "settings").Updates(q).Error
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SchemaService) DeleteQuestion(ctx context.Context, id uint) error {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	return s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		if err := deleteQuestions(tx, []uint{id}); err != nil {
			return err
		}
		return compact(tx, &models.Question{}, "section_id", q.SectionID)
	})
}

// Options

func (s *SchemaService) CreateOption(ctx context.Context, questionID uint, in OptionInput) (*models.Option, error) {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), questionID)
	if err != nil {
		return nil, err
	}
	if !q.Type.HasOptions() {
		return nil, invalidField("question_id", fmt.Sprintf("%s questions do not take options", q.Type))
	}
	v := &ValidationError{}
	opt, _ := optionRow(v, "option", in)
	if err := v.Err(); err != nil {
		return nil, err
	}
	opt.QuestionID = questionID

	err = s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Option{}).Where("question_id = ? AND value = ?", questionID, opt.Value).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return invalidField("value", "duplicate option value")
		}
		order, err := nextOrder(tx, &models.Option{}, "question_id", questionID)
		if err != nil {
			return err
		}
		opt.Order = order
		return tx.Create(&opt).Error
	})
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

func (s *SchemaService) UpdateOption(ctx context.Context, id uint, in OptionInput) (*models.Option, error) {
	opt, q, err := s.questionOfOption(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	v := &ValidationError{}
	if in.Label != nil {
		if l := trimmed(in.Label); l == "" {
			v.Add("label", "must not be empty")
		} else {
			opt.Label = l
		}
	}
	if in.Value != nil {
		if val := trimmed(in.Value); val == "" {
			v.Add("value", "must not be empty")
		} else {
			opt.Value = val
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&models.Option{}).
			Where("question_id = ? AND value = ? AND id <> ?", opt.QuestionID, opt.Value, id).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return invalidField("value", "duplicate option value")
		}
		return tx.Model(opt).Select("value", "label").Updates(opt).Error
	})
	if err != nil {
		return nil, err
	}
	return opt, nil
}

func (s *SchemaService) DeleteOption(ctx context.Context, id uint) error {
	opt, q, err := s.questionOfOption(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	return s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Option{}, id).Error; err != nil {
			return err
		}
		return compact(tx, &models.Option{}, "question_id", opt.QuestionID)
	})
}

// Logic

// ReplaceLogic swaps the whole rule set of a question.
func (s *SchemaService) ReplaceLogic(ctx context.Context, questionID uint, rules []LogicInput) ([]models.QuestionLogic, error) {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), questionID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.QuestionLogic, 0, len(rules))
	err = s.mutate(ctx, q.QuestionnaireID, func(tx *gorm.DB) error {
		v := &ValidationError{}
		for i, r := range rules {
			field := fmt.Sprintf("rules.%d", i)
			if !r.ConditionType.Valid() {
				v.Add(field+".condition_type", fmt.Sprintf("unknown condition %q", r.ConditionType))
			}
			if !r.ActionType.Valid() {
				v.Add(field+".action_type", fmt.Sprintf("unknown action %q", r.ActionType))
			}
			if r.TargetQuestionID == nil && r.TargetSectionID == nil {
				v.Add(field, "needs a target question or section")
			}
			if r.TargetQuestionID != nil {
				if err := belongs(tx, &models.Question{}, *r.TargetQuestionID, q.QuestionnaireID); err != nil {
					v.Add(field+".target_question_id", err.Error())
				}
			}
			if r.TargetSectionID != nil {
				if err := belongs(tx, &models.Section{}, *r.TargetSectionID, q.QuestionnaireID); err != nil {
					v.Add(field+".target_section_id", err.Error())
				}
			}
			rows = append(rows, models.QuestionLogic{
				QuestionID:       questionID,
				ConditionType:    r.ConditionType,
				ConditionValue:   r.ConditionValue,
				ActionType:       r.ActionType,
				TargetQuestionID: r.TargetQuestionID,
				TargetSectionID:  r.TargetSectionID,
			})
		}
		if err := v.Err(); err != nil {
			return err
		}

		if err := tx.Where("question_id = ?", questionID).Delete(&models.QuestionLogic{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func belongs(tx *gorm.DB, model any, id, questionnaireID uint) error {
	var n int64
	if err := tx.Model(model).Where("id = ? AND questionnaire_id = ?", id, questionnaireID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%d is not part of this questionnaire", id)
	}
	return nil
}

// Ownership lookups for the authorization middleware.

func (s *SchemaService) OwnerOfQuestionnaire(ctx context.Context, id uint) (uint, error) {
	var q models.Questionnaire
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&q, id).Error; err != nil {
		return 0, notFound(err, "questionnaire")
	}
	return q.OwnerID, nil
}

func (s *SchemaService) OwnerOfSection(ctx context.Context, id uint) (uint, error) {
	sec, err := s.questionnaireOfSection(s.db.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return s.OwnerOfQuestionnaire(ctx, sec.QuestionnaireID)
}

func (s *SchemaService) OwnerOfQuestion(ctx context.Context, id uint) (uint, error) {
	q, err := s.questionnaireOfQuestion(s.db.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return s.OwnerOfQuestionnaire(ctx, q.QuestionnaireID)
}

func (s *SchemaService) OwnerOfOption(ctx context.Context, id uint) (uint, error) {
	_, q, err := s.questionOfOption(s.db.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return s.OwnerOfQuestionnaire(ctx, q.QuestionnaireID)
}

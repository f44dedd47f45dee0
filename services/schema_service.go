package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vnkhanh/tracer-study/cache"
	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SchemaService owns questionnaires and everything below them. Every
// mutation runs in one transaction that also rebuilds the snapshot column.
type SchemaService struct {
	db     *gorm.DB
	cache  cache.SnapshotCache
	events events.Publisher
	logger *logger.Logger
	now    func() time.Time
}

func NewSchemaService(db *gorm.DB, c cache.SnapshotCache, pub events.Publisher, log *logger.Logger) *SchemaService {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if pub == nil {
		pub = events.NewLog(log)
	}
	return &SchemaService{db: db, cache: c, events: pub, logger: log, now: time.Now}
}

// mutate runs fn and the snapshot rebuild of questionnaire qid in one
// transaction, then refreshes the cached copy.
func (s *SchemaService) mutate(ctx context.Context, qid uint, fn func(tx *gorm.DB) error) error {
	var snap []byte
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		b, err := rebuildSnapshot(tx, qid)
		if err != nil {
			return err
		}
		snap = b
		return nil
	})
	if err != nil {
		return err
	}
	s.storeCache(ctx, qid, snap)
	return nil
}

func (s *SchemaService) storeCache(ctx context.Context, qid uint, snap []byte) {
	if err := s.cache.Set(ctx, qid, snap); err != nil {
		s.logger.Warn("snapshot cache refresh failed",
			zap.Uint("questionnaire_id", qid),
			zap.Error(err))
	}
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func applyTitle(v *ValidationError, field string, p *string, dst *string, required bool) {
	if p == nil {
		if required {
			v.Add(field, "is required")
		}
		return
	}
	t := strings.TrimSpace(*p)
	switch {
	case t == "":
		v.Add(field, "must not be empty")
	case len(t) > 255:
		v.Add(field, "must be at most 255 characters")
	default:
		*dst = t
	}
}

// applyQuestionnaire copies the set fields of in onto q and validates the result.
func applyQuestionnaire(q *models.Questionnaire, in QuestionnaireInput, create bool) error {
	v := &ValidationError{}
	applyTitle(v, "title", in.Title, &q.Title, create)
	if in.Description != nil {
		q.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate.Set {
		q.StartDate = in.StartDate.Value
	}
	if in.EndDate.Set {
		q.EndDate = in.EndDate.Value
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		v.Add("end_date", "must not be before start_date")
	}
	if in.IsTemplate != nil {
		q.IsTemplate = *in.IsTemplate
	}

	if len(in.Settings) > 0 {
		patch, err := models.ParseQuestionnaireSettings(in.Settings)
		if err != nil {
			v.Add("settings", err.Error())
		} else {
			base, err := models.ParseQuestionnaireSettings(q.Settings)
			if err != nil {
				base = &models.QuestionnaireSettings{}
			}
			b, err := json.Marshal(base.Merge(patch))
			if err != nil {
				v.Add("settings", err.Error())
			} else {
				q.Settings = datatypes.JSON(b)
			}
		}
	}
	return v.Err()
}

func (s *SchemaService) CreateQuestionnaire(ctx context.Context, ownerID uint, in QuestionnaireInput) (*models.Questionnaire, error) {
	q := &models.Questionnaire{OwnerID: ownerID, Status: models.StatusDraft}
	if err := applyQuestionnaire(q, in, true); err != nil {
		return nil, err
	}

	var snap []byte
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := s.resolveSlug(tx, in.Slug, q.Title, 0)
		if err != nil {
			return err
		}
		q.Slug = &slug
		if err := tx.Create(q).Error; err != nil {
			return duplicateSlug(err)
		}
		snap, err = rebuildSnapshot(tx, q.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	q.Snapshot = snap
	s.storeCache(ctx, q.ID, snap)

	s.logger.Info("questionnaire created",
		zap.Uint("questionnaire_id", q.ID),
		zap.Uint("owner_id", ownerID))
	return q, nil
}

func (s *SchemaService) GetQuestionnaire(ctx context.Context, id uint) (*models.Questionnaire, error) {
	var q models.Questionnaire
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFound(err, "questionnaire")
	}
	return &q, nil
}

func (s *SchemaService) GetBySlug(ctx context.Context, slug string) (*models.Questionnaire, error) {
	var q models.Questionnaire
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&q).Error; err != nil {
		return nil, notFound(err, "questionnaire")
	}
	return &q, nil
}

// ListQuestionnaires returns one page of the owner's questionnaires, newest first.
func (s *SchemaService) ListQuestionnaires(ctx context.Context, ownerID uint, f QuestionnaireFilter) ([]models.Questionnaire, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Questionnaire{}).Where("owner_id = ?", ownerID)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Template != nil {
		query = query.Where("is_template = ?", *f.Template)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count questionnaires: %w", err)
	}

	offset, limit := paginate(f.Page, f.Limit)
	var out []models.Questionnaire
	err := query.Omit("snapshot").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list questionnaires: %w", err)
	}
	return out, total, nil
}

func (s *SchemaService) UpdateQuestionnaire(ctx context.Context, id uint, in QuestionnaireInput) (*models.Questionnaire, error) {
	var q models.Questionnaire
	err := s.mutate(ctx, id, func(tx *gorm.DB) error {
		if err := tx.First(&q, id).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		if err := applyQuestionnaire(&q, in, false); err != nil {
			return err
		}
		if in.Slug != nil {
			slug, err := s.resolveSlug(tx, in.Slug, q.Title, q.ID)
			if err != nil {
				return err
			}
			q.Slug = &slug
		}
		err := tx.Model(&q).Select("title", "slug", "description", "start_date", "end_date", "is_template", "settings").
			Updates(&q).Error
		return duplicateSlug(err)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteQuestionnaire removes the questionnaire with its structure, responses and answers.
func (s *SchemaService) DeleteQuestionnaire(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Questionnaire
		if err := tx.Select("id").First(&q, id).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		var questions []uint
		if err := tx.Model(&models.Question{}).Where("questionnaire_id = ?", id).Pluck("id", &questions).Error; err != nil {
			return err
		}
		steps := []struct {
			model any
			where string
			arg   any
		}{
			{&models.AnswerDetail{}, "questionnaire_id = ?", id},
			{&models.Response{}, "questionnaire_id = ?", id},
			{&models.QuestionLogic{}, "question_id IN ?", questions},
			{&models.Option{}, "question_id IN ?", questions},
			{&models.Question{}, "questionnaire_id = ?", id},
			{&models.Section{}, "questionnaire_id = ?", id},
		}
		for _, st := range steps {
			if err := tx.Where(st.where, st.arg).Delete(st.model).Error; err != nil {
				return fmt.Errorf("delete %T: %w", st.model, err)
			}
		}
		return tx.Delete(&models.Questionnaire{}, id).Error
	})
	if err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("snapshot cache delete failed", zap.Uint("questionnaire_id", id), zap.Error(err))
	}
	s.logger.Info("questionnaire deleted", zap.Uint("questionnaire_id", id))
	return nil
}

// SetStatus moves a questionnaire through draft -> published -> closed.
// Closed questionnaires may be published again; going back to draft is only
// allowed while no response exists.
func (s *SchemaService) SetStatus(ctx context.Context, id uint, status models.QuestionnaireStatus) (*models.Questionnaire, error) {
	if !status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", status))
	}

	var q models.Questionnaire
	err := s.mutate(ctx, id, func(tx *gorm.DB) error {
		if err := tx.First(&q, id).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		if q.Status == status {
			return nil
		}
		if status == models.StatusDraft {
			var n int64
			if err := tx.Model(&models.Response{}).Where("questionnaire_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return invalidField("status", "cannot return to draft once responses exist")
			}
		}
		if status == models.StatusPublished {
			var n int64
			if err := tx.Model(&models.Question{}).Where("questionnaire_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return invalidField("status", "cannot publish a questionnaire without questions")
			}
		}
		q.Status = status
		return tx.Model(&q).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	routing := ""
	switch status {
	case models.StatusPublished:
		routing = events.QuestionnairePublished
	case models.StatusClosed:
		routing = events.QuestionnaireClosed
	}
	if routing != "" {
		payload := events.QuestionnaireStatusPayload{QuestionnaireID: id, Status: string(status)}
		if err := s.events.Publish(ctx, routing, payload); err != nil {
			s.logger.Warn("status event not published", zap.Uint("questionnaire_id", id), zap.Error(err))
		}
	}
	return &q, nil
}

func (s *SchemaService) Publish(ctx context.Context, id uint) (*models.Questionnaire, error) {
	return s.SetStatus(ctx, id, models.StatusPublished)
}

func (s *SchemaService) Close(ctx context.Context, id uint) (*models.Questionnaire, error) {
	return s.SetStatus(ctx, id, models.StatusClosed)
}

// Tree returns the snapshot of a questionnaire: from the cache, else from the
// snapshot column, else rebuilt from the rows.
func (s *SchemaService) Tree(ctx context.Context, id uint) (*SnapshotTree, error) {
	if b, err := s.cache.Get(ctx, id); err == nil {
		var tree SnapshotTree
		if err := json.Unmarshal(b, &tree); err == nil {
			return &tree, nil
		}
		s.logger.Warn("cached snapshot is unreadable", zap.Uint("questionnaire_id", id))
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("snapshot cache read failed", zap.Uint("questionnaire_id", id), zap.Error(err))
	}

	var q models.Questionnaire
	if err := s.db.WithContext(ctx).Select("id", "snapshot").First(&q, id).Error; err != nil {
		return nil, notFound(err, "questionnaire")
	}

	b := []byte(q.Snapshot)
	var tree SnapshotTree
	if len(b) == 0 || json.Unmarshal(b, &tree) != nil {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			b, err = rebuildSnapshot(tx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &tree); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	s.storeCache(ctx, id, b)
	return &tree, nil
}

// Structure loads the questionnaire rows with every child in display order.
func (s *SchemaService) Structure(ctx context.Context, id uint) (*models.Questionnaire, error) {
	return loadTree(s.db.WithContext(ctx), id)
}

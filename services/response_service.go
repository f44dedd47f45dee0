package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vnkhanh/tracer-study/answer"
	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResponseService drives responses from in_progress to completed. A
// completed response is never written again.
type ResponseService struct {
	db     *gorm.DB
	events events.Publisher
	logger *logger.Logger
	now    func() time.Time
}

func NewResponseService(db *gorm.DB, pub events.Publisher, log *logger.Logger) *ResponseService {
	if log == nil {
		log = logger.Nop()
	}
	if pub == nil {
		pub = events.NewLog(log)
	}
	return &ResponseService{db: db, events: pub, logger: log, now: time.Now}
}

func answerField(questionID uint) string {
	return fmt.Sprintf("answers.%d", questionID)
}

// identifierFor picks the explicit identifier, else the email, the user id
// or the client address.
func identifierFor(identifier string, meta RespondentMeta) string {
	if id := strings.TrimSpace(identifier); id != "" {
		return id
	}
	if e := strings.ToLower(strings.TrimSpace(meta.Email)); e != "" {
		return e
	}
	if meta.UserID != nil {
		return fmt.Sprintf("user:%d", *meta.UserID)
	}
	return strings.TrimSpace(meta.IPAddress)
}

func (s *ResponseService) settingsOf(q *models.Questionnaire) *models.QuestionnaireSettings {
	settings, err := models.ParseQuestionnaireSettings(q.Settings)
	if err != nil {
		s.logger.Warn("malformed questionnaire settings, using defaults",
			zap.Uint("questionnaire_id", q.ID),
			zap.Error(err))
	}
	return settings
}

func (s *ResponseService) findOrCreate(tx *gorm.DB, q *models.Questionnaire, identifier string, meta RespondentMeta) (*models.Response, bool, error) {
	if !q.IsActive(s.now()) {
		return nil, false, ErrInactive
	}
	settings := s.settingsOf(q)
	if settings.LoginRequired() && meta.UserID == nil {
		return nil, false, ErrLoginRequired
	}

	key := identifierFor(identifier, meta)
	if key == "" {
		return nil, false, invalidField("respondent_identifier", "is required")
	}

	if settings.ResumeAllowed() {
		var existing []models.Response
		err := tx.Where("questionnaire_id = ? AND respondent_identifier = ? AND completed_at IS NULL", q.ID, key).
			Order("id DESC").
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return nil, false, fmt.Errorf("find response: %w", err)
		}
		if len(existing) == 1 {
			return &existing[0], false, nil
		}
	}

	if limit, ok := settings.Limit(); ok {
		var completed int64
		if err := tx.Model(&models.Response{}).
			Where("questionnaire_id = ? AND completed_at IS NOT NULL", q.ID).
			Count(&completed).Error; err != nil {
			return nil, false, err
		}
		if completed >= int64(limit) {
			return nil, false, ErrLimitReached
		}
	}

	r := &models.Response{
		QuestionnaireID:      q.ID,
		UserID:               meta.UserID,
		RespondentName:       strings.TrimSpace(meta.Name),
		RespondentEmail:      strings.TrimSpace(meta.Email),
		RespondentIdentifier: key,
		IPAddress:            meta.IPAddress,
		UserAgent:            meta.UserAgent,
	}
	if err := tx.Create(r).Error; err != nil {
		return nil, false, fmt.Errorf("create response: %w", err)
	}
	return r, true, nil
}

// lockQuestionnaire serializes response starts for one questionnaire so the
// resume lookup and the response limit see every committed start. The no-op
// update takes the row lock in postgres and the write lock in sqlite; it must
// be the first statement of the transaction.
func lockQuestionnaire(tx *gorm.DB, column string, value any) error {
	err := tx.Exec("UPDATE questionnaires SET id = id WHERE "+column+" = ?", value).Error
	if err != nil {
		return fmt.Errorf("lock questionnaire: %w", err)
	}
	return nil
}

// FindOrCreate returns the respondent's in-progress response or starts one.
// created is true when a new row was inserted.
func (s *ResponseService) FindOrCreate(ctx context.Context, questionnaireID uint, identifier string, meta RespondentMeta) (r *models.Response, created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockQuestionnaire(tx, "id", questionnaireID); err != nil {
			return err
		}
		var q models.Questionnaire
		if err := tx.Omit("snapshot").First(&q, questionnaireID).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		r, created, err = s.findOrCreate(tx, &q, identifier, meta)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("response started",
			zap.Uint("questionnaire_id", questionnaireID),
			zap.Uint("response_id", r.ID))
	}
	return r, created, nil
}

func normalizeErr(questionID uint, err error) error {
	switch {
	case errors.Is(err, answer.ErrRequired):
		return invalidField(answerField(questionID), "answer is required")
	case errors.Is(err, answer.ErrInvalid), errors.Is(err, answer.ErrNotAnswerable):
		return invalidField(answerField(questionID), err.Error())
	}
	return err
}

// upsertAnswer writes the single row for (response, question); the last write wins.
func upsertAnswer(tx *gorm.DB, r *models.Response, q *models.Question, stored answer.Stored) (*models.AnswerDetail, error) {
	row := models.AnswerDetail{
		ResponseID:      r.ID,
		QuestionID:      q.ID,
		QuestionnaireID: r.QuestionnaireID,
		AnswerValue:     stored.Value,
	}
	if len(stored.Data) > 0 {
		row.AnswerData = datatypes.JSON(stored.Data)
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "response_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_value", "answer_data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	var saved models.AnswerDetail
	if err := tx.Where("response_id = ? AND question_id = ?", r.ID, q.ID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("reload answer: %w", err)
	}
	return &saved, nil
}

func (s *ResponseService) openResponse(tx *gorm.DB, id uint) (*models.Response, error) {
	var r models.Response
	if err := tx.First(&r, id).Error; err != nil {
		return nil, notFound(err, "response")
	}
	if r.IsComplete() {
		return nil, ErrResponseCompleted
	}
	return &r, nil
}

func (s *ResponseService) SaveAnswer(ctx context.Context, responseID, questionID uint, raw json.RawMessage) (*models.AnswerDetail, error) {
	var saved *models.AnswerDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.openResponse(tx, responseID)
		if err != nil {
			return err
		}

		var qn models.Questionnaire
		if err := tx.Omit("snapshot").First(&qn, r.QuestionnaireID).Error; err != nil {
			return notFound(err, "questionnaire")
		}
		if !qn.IsActive(s.now()) {
			return ErrInactive
		}

		var q models.Question
		err = tx.Preload("Options", byOrder).
			Where("id = ? AND questionnaire_id = ?", questionID, r.QuestionnaireID).
			First(&q).Error
		if err != nil {
			return notFound(err, "question")
		}

		spec, err := answer.NewSpec(&q)
		if err != nil {
			s.logger.Warn("malformed question settings, using defaults",
				zap.Uint("question_id", q.ID),
				zap.Error(err))
		}
		stored, err := spec.Normalize(raw)
		if err != nil {
			return normalizeErr(q.ID, err)
		}
		saved, err = upsertAnswer(tx, r, &q, stored)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// missingRequired lists required answerable questions without a real answer.
func missingRequired(tx *gorm.DB, r *models.Response) (*ValidationError, error) {
	var required []models.Question
	err := tx.Where("questionnaire_id = ? AND required = ? AND type <> ?", r.QuestionnaireID, true, models.TypeStatic).
		Order("id ASC").
		Find(&required).Error
	if err != nil {
		return nil, fmt.Errorf("load required questions: %w", err)
	}

	var answers []models.AnswerDetail
	if err := tx.Where("response_id = ?", r.ID).Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	have := make(map[uint]bool, len(answers))
	for i := range answers {
		if !answer.IsSkipped(&answers[i]) {
			have[answers[i].QuestionID] = true
		}
	}

	v := &ValidationError{}
	for _, q := range required {
		if !have[q.ID] {
			v.Add(answerField(q.ID), "answer is required")
		}
	}
	return v, nil
}

// markComplete sets completed_at only if it is still NULL.
func (s *ResponseService) markComplete(tx *gorm.DB, r *models.Response) error {
	v, err := missingRequired(tx, r)
	if err != nil {
		return err
	}
	if err := v.Err(); err != nil {
		return err
	}

	now := s.now().UTC()
	res := tx.Model(&models.Response{}).
		Where("id = ? AND completed_at IS NULL", r.ID).
		Update("completed_at", now)
	if res.Error != nil {
		return fmt.Errorf("complete response: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyCompleted
	}
	r.CompletedAt = &now
	return nil
}

func (s *ResponseService) publishCompleted(ctx context.Context, r *models.Response) {
	payload := events.ResponseCompletedPayload{
		ResponseID:      r.ID,
		QuestionnaireID: r.QuestionnaireID,
		CompletedAt:     *r.CompletedAt,
	}
	if err := s.events.Publish(ctx, events.ResponseCompleted, payload); err != nil {
		s.logger.Warn("completion event not published",
			zap.Uint("response_id", r.ID),
			zap.Error(err))
	}
}

// Complete freezes a response. A second call returns ErrAlreadyCompleted.
func (s *ResponseService) Complete(ctx context.Context, responseID uint) (*models.Response, error) {
	var r models.Response
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, responseID).Error; err != nil {
			return notFound(err, "response")
		}
		if r.IsComplete() {
			return ErrAlreadyCompleted
		}
		return s.markComplete(tx, &r)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("response completed",
		zap.Uint("questionnaire_id", r.QuestionnaireID),
		zap.Uint("response_id", r.ID))
	s.publishCompleted(ctx, &r)
	return &r, nil
}

// Submit answers and completes a response in one transaction. Every answer
// error is reported at once and nothing is written when any is rejected.
func (s *ResponseService) Submit(ctx context.Context, req SubmitRequest, meta RespondentMeta) (*models.Response, error) {
	if meta.Name == "" {
		meta.Name = req.RespondentName
	}
	if meta.Email == "" {
		meta.Email = req.RespondentEmail
	}

	var r *models.Response
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockQuestionnaire(tx, "slug", req.Slug); err != nil {
			return err
		}
		var q models.Questionnaire
		if err := tx.Omit("snapshot").Where("slug = ?", req.Slug).First(&q).Error; err != nil {
			return notFound(err, "questionnaire")
		}

		var err error
		r, _, err = s.findOrCreate(tx, &q, req.RespondentIdentifier, meta)
		if err != nil {
			return err
		}

		var questions []models.Question
		err = tx.Preload("Options", byOrder).
			Where("questionnaire_id = ?", q.ID).
			Order("id ASC").
			Find(&questions).Error
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		byID := make(map[uint]*models.Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}

		v := &ValidationError{}
		ids := make([]uint, 0, len(req.Answers))
		for id := range req.Answers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		type pending struct {
			q      *models.Question
			stored answer.Stored
		}
		var writes []pending
		for _, id := range ids {
			qu, ok := byID[id]
			if !ok {
				v.Add(answerField(id), "unknown question")
				continue
			}
			spec, err := answer.NewSpec(qu)
			if err != nil {
				s.logger.Warn("malformed question settings, using defaults",
					zap.Uint("question_id", qu.ID),
					zap.Error(err))
			}
			stored, err := spec.Normalize(req.Answers[id])
			if err != nil {
				var ve *ValidationError
				if errors.As(normalizeErr(id, err), &ve) {
					v.Fields = append(v.Fields, ve.Fields...)
					continue
				}
				return err
			}
			writes = append(writes, pending{q: qu, stored: stored})
		}
		if err := v.Err(); err != nil {
			return err
		}

		for _, w := range writes {
			if _, err := upsertAnswer(tx, r, w.q, w.stored); err != nil {
				return err
			}
		}
		if len(req.ResponseData) > 0 && json.Valid(req.ResponseData) {
			if err := tx.Model(r).UpdateColumn("response_data", datatypes.JSON(req.ResponseData)).Error; err != nil {
				return err
			}
		}
		return s.markComplete(tx, r)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("response submitted",
		zap.Uint("questionnaire_id", r.QuestionnaireID),
		zap.Uint("response_id", r.ID),
		zap.Int("answers", len(req.Answers)))
	s.publishCompleted(ctx, r)
	return r, nil
}

// Statistics reports counts, completion rate and the mean time to complete.
func (s *ResponseService) Statistics(ctx context.Context, questionnaireID uint) (*models.ResponseStatistics, error) {
	db := s.db.WithContext(ctx)
	var q models.Questionnaire
	if err := db.Select("id").First(&q, questionnaireID).Error; err != nil {
		return nil, notFound(err, "questionnaire")
	}

	var completed []models.Response
	err := db.Select("id", "created_at", "completed_at").
		Where("questionnaire_id = ? AND completed_at IS NOT NULL", questionnaireID).
		Find(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("load completed responses: %w", err)
	}

	st := &models.ResponseStatistics{CompletedResponses: int64(len(completed))}
	if err := db.Model(&models.Response{}).Where("questionnaire_id = ?", questionnaireID).Count(&st.TotalResponses).Error; err != nil {
		return nil, fmt.Errorf("count responses: %w", err)
	}
	return computeStatistics(st, completed), nil
}

func computeStatistics(st *models.ResponseStatistics, completed []models.Response) *models.ResponseStatistics {
	if st.TotalResponses > 0 {
		st.CompletionRate = float64(st.CompletedResponses) / float64(st.TotalResponses)
	}
	var total float64
	n := 0
	for _, r := range completed {
		if r.CompletedAt == nil {
			continue
		}
		total += r.CompletedAt.Sub(r.CreatedAt).Seconds()
		n++
	}
	if n > 0 {
		st.AverageCompletionSeconds = total / float64(n)
	}
	return st
}

func (s *ResponseService) responseQuery(ctx context.Context, questionnaireID uint, f ResponseFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Response{}).Where("questionnaire_id = ?", questionnaireID)
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if f.CompletedOnly {
		q = q.Where("completed_at IS NOT NULL")
	}
	return q
}

// ListResponses returns one page of responses with answers, oldest first.
func (s *ResponseService) ListResponses(ctx context.Context, questionnaireID uint, f ResponseFilter) ([]models.Response, int64, error) {
	var total int64
	if err := s.responseQuery(ctx, questionnaireID, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count responses: %w", err)
	}

	offset, limit := paginate(f.Page, f.Limit)
	var out []models.Response
	err := s.responseQuery(ctx, questionnaireID, f).
		Preload("Answers").
		Preload("User").
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	return out, total, nil
}

// AllResponses is ListResponses without paging, used by exports.
func (s *ResponseService) AllResponses(ctx context.Context, questionnaireID uint, f ResponseFilter) ([]models.Response, error) {
	var out []models.Response
	err := s.responseQuery(ctx, questionnaireID, f).
		Preload("Answers").
		Preload("User").
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	return out, nil
}

func (s *ResponseService) GetResponse(ctx context.Context, id uint) (*models.Response, error) {
	var r models.Response
	err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("question_id ASC") }).
		Preload("User").
		First(&r, id).Error
	if err != nil {
		return nil, notFound(err, "response")
	}
	return &r, nil
}

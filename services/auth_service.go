package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type AuthConfig struct {
	JWTSecret   string
	OTPTTL      time.Duration
	MaxAttempts int
	PerMinute   int
}

// AuthService signs admins and alumni in and runs the emailed-code password
// reset flow.
type AuthService struct {
	db      *gorm.DB
	events  events.Publisher
	logger  *logger.Logger
	cfg     AuthConfig
	limiter *utils.KeyedLimiter
	now     func() time.Time
}

func NewAuthService(db *gorm.DB, pub events.Publisher, log *logger.Logger, cfg AuthConfig) *AuthService {
	if log == nil {
		log = logger.Nop()
	}
	if pub == nil {
		pub = events.NewLog(log)
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 5
	}
	return &AuthService{
		db:      db,
		events:  pub,
		logger:  log,
		cfg:     cfg,
		limiter: utils.NewKeyedLimiter(cfg.PerMinute, cfg.PerMinute, 10*time.Minute),
		now:     time.Now,
	}
}

// Close stops the limiter cleanup goroutine.
func (s *AuthService) Close() error {
	return s.limiter.Close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) throttle(action, email, ip string) error {
	ok, wait := s.limiter.Allow(action + "|" + email + "|" + ip)
	if ok {
		return nil
	}
	return &RateLimitError{RetryAfter: wait}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	v := &ValidationError{}
	if strings.TrimSpace(name) == "" {
		v.Add("name", "must not be empty")
	}
	if !validEmail(email) {
		v.Add("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Name: strings.TrimSpace(name), Email: email, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalidField("email", "email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks the credentials and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(s.cfg.JWTSecret, u.ID, u.Email, u.IsAdmin, s.now())
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, &u, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := utils.VerifyToken(s.cfg.JWTSecret, token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// EnsureAdmin creates the configured admin account, or promotes an existing
// account with that email. An existing password is left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	db := s.db.WithContext(ctx)
	var u models.User
	err := db.Where("email = ?", email).First(&u).Error
	switch {
	case err == nil:
		if !u.IsAdmin {
			if err := db.Model(&u).Update("is_admin", true).Error; err != nil {
				return nil, fmt.Errorf("promote admin: %w", err)
			}
		}
		return &u, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load admin: %w", err)
	}

	if password == "" {
		return nil, errors.New("admin password is not configured")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if name == "" {
		name = "Administrator"
	}
	u = models.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: true}
	if err := db.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", zap.String("email", email))
	return &u, nil
}

// RequestPasswordReset issues a fresh code for email. Unknown addresses are
// accepted silently so the endpoint does not reveal which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return invalidField("email", "must be a valid email address")
	}
	if err := s.throttle("request", email, ip); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if n == 0 {
		s.logger.Info("password reset for unknown email ignored", zap.String("ip", ip))
		return nil
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	token := models.PasswordResetToken{
		Email:     email,
		Token:     code,
		ExpiresAt: s.now().Add(s.cfg.OTPTTL),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("email = ? AND used = ?", email, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	payload := events.PasswordResetPayload{Email: email, Code: code, ExpiresAt: token.ExpiresAt}
	if err := s.events.Publish(ctx, events.PasswordResetRequested, payload); err != nil {
		s.logger.Error("reset code not handed to mailer", zap.String("email", email), zap.Error(err))
	}
	return nil
}

var errBadCode = invalidField("token", "invalid or expired code")

// checkCode validates code against the newest live token. A wrong code costs
// one attempt; the last allowed attempt burns the token.
func (s *AuthService) checkCode(db *gorm.DB, email, code string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := db.Where("email = ? AND used = ?", email, false).
		Order("created_at DESC, id DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCode
	}
	if err != nil {
		return nil, fmt.Errorf("load reset code: %w", err)
	}
	if t.Expired(s.now()) || t.Attempts >= s.cfg.MaxAttempts {
		return nil, errBadCode
	}

	if !utils.EqualCode(t.Token, strings.TrimSpace(code)) {
		t.Attempts++
		updates := map[string]any{"attempts": t.Attempts}
		if t.Attempts >= s.cfg.MaxAttempts {
			updates["used"] = true
		}
		if err := db.Model(&t).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("record attempt: %w", err)
		}
		return nil, errBadCode
	}
	return &t, nil
}

// VerifyResetToken checks a code without consuming it.
func (s *AuthService) VerifyResetToken(ctx context.Context, email, ip, code string) error {
	email = normalizeEmail(email)
	if err := s.throttle("verify", email, ip); err != nil {
		return err
	}
	_, err := s.checkCode(s.db.WithContext(ctx), email, code)
	return err
}

func (s *AuthService) ResetPassword(ctx context.Context, email, ip, code, newPassword string) error {
	email = normalizeEmail(email)
	if len(newPassword) < minPasswordLength {
		return invalidField("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if err := s.throttle("reset", email, ip); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	t, err := s.checkCode(db, email, code)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used = ?", t.ID, false).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errBadCode
		}
		return tx.Model(&models.User{}).Where("email = ?", email).Update("password_hash", hash).Error
	})
	if err != nil {
		return err
	}

	if err := s.events.Publish(ctx, events.PasswordResetCompleted, events.PasswordResetPayload{Email: email}); err != nil {
		s.logger.Warn("reset completion event not published", zap.Error(err))
	}
	s.logger.Info("password reset", zap.String("email", email))
	return nil
}

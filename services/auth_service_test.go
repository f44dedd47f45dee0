package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/testutil"
	"github.com/vnkhanh/tracer-study/utils"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newAuth(t *testing.T) (*AuthService, *gorm.DB, *recorder) {
	t.Helper()
	db := testutil.DB(t)
	rec := &recorder{}
	s := NewAuthService(db, rec, nil, AuthConfig{JWTSecret: testSecret})
	t.Cleanup(func() { s.Close() })
	return s, db, rec
}

func resetCode(t *testing.T, rec *recorder) string {
	t.Helper()
	p, ok := rec.last(events.PasswordResetRequested).(events.PasswordResetPayload)
	require.True(t, ok, "no reset event published")
	require.Len(t, p.Code, utils.OTPLength)
	return p.Code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRegisterAndLogin(t *testing.T) {
	s, _, _ := newAuth(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "Lan", " Lan@Example.com ", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", u.Email)
	assert.False(t, u.IsAdmin)

	_, err = s.Register(ctx, "Lan", "lan@example.com", "longenough")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Fields[0].Field)

	_, err = s.Register(ctx, "", "not-an-email", "short")
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 3)

	token, got, err := s.Login(ctx, "LAN@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := utils.VerifyToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	who, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, who.ID)

	_, _, err = s.Login(ctx, "lan@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdmin(t *testing.T) {
	s, db, _ := newAuth(t)
	ctx := context.Background()

	admin, err := s.EnsureAdmin(ctx, "", "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, "Administrator", admin.Name)

	again, err := s.EnsureAdmin(ctx, "", "admin@example.com", "other-pass")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	_, _, err = s.Login(ctx, "admin@example.com", "admin-pass")
	assert.NoError(t, err)

	testutil.User(t, db, "alumni@example.com", "alumni-pass", false)
	promoted, err := s.EnsureAdmin(ctx, "", "alumni@example.com", "")
	require.NoError(t, err)
	var stored models.User
	require.NoError(t, db.First(&stored, promoted.ID).Error)
	assert.True(t, stored.IsAdmin)
}

func TestPasswordReset(t *testing.T) {
	s, db, rec := newAuth(t)
	ctx := context.Background()
	testutil.User(t, db, "lan@example.com", "old-password", false)

	require.NoError(t, s.RequestPasswordReset(ctx, "lan@example.com", "10.0.0.1"))
	code := resetCode(t, rec)

	require.NoError(t, s.VerifyResetToken(ctx, "lan@example.com", "10.0.0.1", code))
	require.NoError(t, s.ResetPassword(ctx, "Lan@example.com", "10.0.0.1", code, "new-password"))
	assert.Contains(t, rec.keys(), events.PasswordResetCompleted)

	_, _, err := s.Login(ctx, "lan@example.com", "new-password")
	assert.NoError(t, err)
	_, _, err = s.Login(ctx, "lan@example.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = s.ResetPassword(ctx, "lan@example.com", "10.0.0.1", code, "third-password")
	assert.ErrorIs(t, err, errBadCode)
}

func TestPasswordReset_NewCodeReplacesOld(t *testing.T) {
	s, db, rec := newAuth(t)
	ctx := context.Background()
	testutil.User(t, db, "lan@example.com", "old-password", false)

	require.NoError(t, s.RequestPasswordReset(ctx, "lan@example.com", "ip"))
	first := resetCode(t, rec)
	require.NoError(t, s.RequestPasswordReset(ctx, "lan@example.com", "ip"))
	second := resetCode(t, rec)

	var live int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Where("used = ?", false).Count(&live).Error)
	assert.Equal(t, int64(1), live)

	if first != second {
		assert.ErrorIs(t, s.VerifyResetToken(ctx, "lan@example.com", "ip", first), errBadCode)
	}
	assert.NoError(t, s.VerifyResetToken(ctx, "lan@example.com", "ip", second))
}

func TestPasswordReset_AttemptsBurnCode(t *testing.T) {
	s, db, rec := newAuth(t)
	ctx := context.Background()
	testutil.User(t, db, "lan@example.com", "old-password", false)

	require.NoError(t, s.RequestPasswordReset(ctx, "lan@example.com", "ip"))
	code := resetCode(t, rec)

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, s.VerifyResetToken(ctx, "lan@example.com", "ip", wrongCode(code)), errBadCode)
	}
	var tok models.PasswordResetToken
	require.NoError(t, db.Where("email = ?", "lan@example.com").First(&tok).Error)
	assert.Equal(t, 4, tok.Attempts)
	assert.False(t, tok.Used)

	assert.ErrorIs(t, s.VerifyResetToken(ctx, "lan@example.com", "ip", wrongCode(code)), errBadCode)
	require.NoError(t, db.First(&tok, tok.ID).Error)
	assert.True(t, tok.Used)

	err := s.ResetPassword(ctx, "lan@example.com", "ip", code, "new-password")
	assert.ErrorIs(t, err, errBadCode)
}

func TestPasswordReset_Expiry(t *testing.T) {
	s, db, rec := newAuth(t)
	ctx := context.Background()
	testutil.User(t, db, "lan@example.com", "old-password", false)

	start := time.Now()
	s.now = fixedClock(start)
	require.NoError(t, s.RequestPasswordReset(ctx, "lan@example.com", "ip"))
	code := resetCode(t, rec)

	s.now = fixedClock(start.Add(16 * time.Minute))
	assert.ErrorIs(t, s.VerifyResetToken(ctx, "lan@example.com", "ip", code), errBadCode)
}

func TestPasswordReset_UnknownEmailAndLimit(t *testing.T) {
	s, _, rec := newAuth(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RequestPasswordReset(ctx, "ghost@example.com", "10.0.0.9"))
	}
	assert.Empty(t, rec.keys())

	err := s.RequestPasswordReset(ctx, "ghost@example.com", "10.0.0.9")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Positive(t, rl.RetryAfter)
	assert.LessOrEqual(t, rl.RetryAfter, 12*time.Second)

	assert.NoError(t, s.RequestPasswordReset(ctx, "ghost@example.com", "10.0.0.10"))

	err = s.RequestPasswordReset(ctx, "broken", "10.0.0.9")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

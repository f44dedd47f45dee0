package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken("secret", 42, "admin@example.com", true, time.Now())
	require.NoError(t, err)

	claims, err := VerifyToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.True(t, claims.IsAdmin)

	_, err = VerifyToken("other", tok)
	assert.Error(t, err)
}

func TestToken_Expired(t *testing.T) {
	tok, err := GenerateToken("secret", 1, "a@b.c", false, time.Now().Add(-25*time.Hour))
	require.NoError(t, err)
	_, err = VerifyToken("secret", tok)
	assert.Error(t, err)
}

func TestToken_EmptySecret(t *testing.T) {
	_, err := GenerateToken("", 1, "", false, time.Now())
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "s3cret"))
	assert.False(t, CheckPassword(h, "nope"))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
	assert.True(t, EqualCode("123456", "123456"))
	assert.False(t, EqualCode("123456", "123457"))
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Tracer Study 2024":        "tracer-study-2024",
		"  Khảo sát   cựu sinh viên ": "khao-sat-cuu-sinh-vien",
		"Đại học!!":                "dai-hoc",
		"***":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(5, 5, time.Minute)
	defer l.Close()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("a@b.c|1.2.3.4")
		require.True(t, ok, "request %d", i+1)
	}
	ok, wait := l.Allow("a@b.c|1.2.3.4")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 12*time.Second)

	ok, _ = l.Allow("a@b.c|5.6.7.8")
	assert.True(t, ok, "other keys have their own bucket")

	now = now.Add(12 * time.Second)
	ok, _ = l.Allow("a@b.c|1.2.3.4")
	assert.True(t, ok)
}

func TestKeyedLimiter_Prune(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Minute)
	defer l.Close()
	now := time.Now()
	l.now = func() time.Time { return now }
	l.Allow("k")
	l.prune(now.Add(2 * time.Minute))
	assert.Empty(t, l.visitors)
}

func TestConnect(t *testing.T) {
	calls := 0
	v, err := Connect(3, 0, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("not yet")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)

	_, err = Connect(2, 0, func() (int, error) { return 0, errors.New("down") })
	assert.EqualError(t, err, "down")
}

func TestCloserGroup(t *testing.T) {
	var order []int
	g := NewCloserGroup(CloserFunc(func() error { order = append(order, 1); return nil }))
	g.Add(CloserFunc(func() error { order = append(order, 2); return errors.New("boom") }))
	err := g.Close()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{2, 1}, order)
}

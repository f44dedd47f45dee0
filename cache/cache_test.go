package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "questionnaire:12:snapshot", snapshotKey(12))
}

func TestNoop(t *testing.T) {
	var c SnapshotCache = Noop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, 1, []byte(`{}`)))
	_, err := c.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrMiss)
	assert.True(t, c.IsHealthy())
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, url)
	require.NoError(t, err)

	c := NewRedis(client, time.Minute, nil)
	defer c.Close()

	require.NoError(t, c.Set(ctx, 99, []byte(`{"id":99}`)))
	got, err := c.Get(ctx, 99)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":99}`, string(got))

	require.NoError(t, c.Delete(ctx, 99))
	_, err = c.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrMiss)
	assert.True(t, c.IsHealthy())
}

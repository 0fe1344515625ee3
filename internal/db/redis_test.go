package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/mediahub/internal/migration"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	store := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: s.Addr()}),
		Ctx:    context.Background(),
	}
	t.Cleanup(func() {
		store.Close()
		s.Close()
	})
	return s, store
}

func TestPublishRunStoresAndAnnounces(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	sub := store.Client.Subscribe(ctx, MigrationRunChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	rep := sampleReport()
	rep.AdsUpdated = 2
	require.NoError(t, store.PublishRun(ctx, rep))

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(rctx)
	require.NoError(t, err)

	var got migration.Summary
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.ByOutcome[migration.OutcomeNeedsReview])
	assert.Equal(t, 2, got.AdsUpdated)

	last, err := store.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, 4, last.Ads)
}

func TestLastRunEmpty(t *testing.T) {
	_, store := setupTestRedis(t)
	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestLastRunTTL(t *testing.T) {
	s, store := setupTestRedis(t)
	store.LastRunTTL = time.Hour
	require.NoError(t, store.PublishRun(context.Background(), sampleReport()))

	assert.Equal(t, time.Hour, s.TTL(LastRunKey))
	s.FastForward(2 * time.Hour)
	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestLastRunCorrupt(t *testing.T) {
	s, store := setupTestRedis(t)
	require.NoError(t, s.Set(LastRunKey, "not json"))
	_, err := store.LastRun(context.Background())
	assert.Error(t, err)
}

func TestPublishFormatUpdate(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	sub := store.Client.Subscribe(ctx, FormatUpdateChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, store.PublishFormatUpdate(ctx, FormatUpdate{
		PublicationID: "abc", Newsletter: 1, Ad: 2, Dimensions: []string{"300x250"},
	}))

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(rctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"publication_id":"abc","newsletter":1,"ad":2,"dimensions":["300x250"]}`, msg.Payload)
}

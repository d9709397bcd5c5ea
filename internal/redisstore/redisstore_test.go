package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

func testStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ttl), mr
}

func TestRoundTrip(t *testing.T) {
	s, _ := testStore(t, 0)
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Blocks.WorldSeeds = &session.WorldSeeds{Factions: []string{"The Gilded Hand"}}
	doc.Version = 5
	require.NoError(t, s.Save(ctx, "s1", doc))

	loaded, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loaded.Version)
	require.NotNil(t, loaded.Blocks.WorldSeeds)
	assert.Equal(t, []string{"The Gilded Hand"}, loaded.Blocks.WorldSeeds.Factions)
}

func TestLoadMissing(t *testing.T) {
	s, _ := testStore(t, 0)

	_, err := s.Load(context.Background(), "absent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	s, mr := testStore(t, 0)

	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, err := s.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestTTLExpiry(t *testing.T) {
	s, mr := testStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "s1", session.NewDocument()))

	mr.FastForward(2 * time.Minute)

	_, err := s.Load(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestList(t *testing.T) {
	s, _ := testStore(t, 0)
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Version = 2
	require.NoError(t, s.Save(ctx, "alpha", doc))
	require.NoError(t, s.Save(ctx, "beta", session.NewDocument()))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	ids := map[string]int64{}
	for _, info := range infos {
		ids[info.ID] = info.DocumentVersion
	}
	assert.Equal(t, int64(2), ids["alpha"])
	assert.Contains(t, ids, "beta")
}

package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

func TestRoundTripIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Blocks.PlayerHooks = []session.PlayerHook{{Name: "Mara"}}
	require.NoError(t, s.Save(ctx, "a", doc))

	// Mutating the saved document must not leak into the store.
	doc.Blocks.PlayerHooks[0].Name = "changed"

	loaded, err := s.Load(ctx, "a")
	require.NoError(t, err)
	require.Len(t, loaded.Blocks.PlayerHooks, 1)
	assert.Equal(t, "Mara", loaded.Blocks.PlayerHooks[0].Name)
}

func TestLoadMissing(t *testing.T) {
	_, err := New().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCorruptLoad(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "a", session.NewDocument()))
	s.Corrupt("a")

	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestList(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Version = 7
	require.NoError(t, s.Save(ctx, "a", doc))
	require.NoError(t, s.Save(ctx, "b", session.NewDocument()))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

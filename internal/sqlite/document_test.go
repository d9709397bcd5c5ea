package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

func TestDocumentRoundTrip(t *testing.T) {
	docs := NewDocumentStore(NewTestDB(t))
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Blocks.Background = &session.BackgroundBlock{Title: "Ashfall", Synopsis: "A city rebuilt on a buried volcano."}
	doc.Locks[session.BlockBackground] = true
	doc.Versions.Background = 1
	doc.Version = 2
	doc.UpdatedAt = time.Now().UTC()

	require.NoError(t, docs.Save(ctx, "s1", doc))

	loaded, err := docs.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.True(t, loaded.Locks[session.BlockBackground])
	require.NotNil(t, loaded.Blocks.Background)
	assert.Equal(t, "Ashfall", loaded.Blocks.Background.Title)
}

func TestDocumentLoadMissing(t *testing.T) {
	docs := NewDocumentStore(NewTestDB(t))

	_, err := docs.Load(context.Background(), "absent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDocumentLoadCorrupt(t *testing.T) {
	db := NewTestDB(t)
	docs := NewDocumentStore(db)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO session_documents (session_id, document, document_version, updated_at) VALUES (?, ?, ?, ?)`,
		"bad", "{not json", 1, time.Now().UTC())
	require.NoError(t, err)

	_, err = docs.Load(ctx, "bad")
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestDocumentUpsert(t *testing.T) {
	docs := NewDocumentStore(NewTestDB(t))
	ctx := context.Background()

	doc := session.NewDocument()
	doc.Version = 1
	require.NoError(t, docs.Save(ctx, "s1", doc))

	doc.Version = 2
	doc.Blocks.PlayerHooks = []session.PlayerHook{{Name: "Mara"}}
	require.NoError(t, docs.Save(ctx, "s1", doc))

	loaded, err := docs.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Len(t, loaded.Blocks.PlayerHooks, 1)
}

func TestDocumentList(t *testing.T) {
	docs := NewDocumentStore(NewTestDB(t))
	ctx := context.Background()

	a := session.NewDocument()
	a.Version = 4
	require.NoError(t, docs.Save(ctx, "alpha", a))
	require.NoError(t, docs.Save(ctx, "beta", session.NewDocument()))

	infos, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.Equal(t, int64(4), infos[0].DocumentVersion)
	assert.Equal(t, "beta", infos[1].ID)
}

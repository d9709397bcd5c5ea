package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestBackgroundReplacement(t *testing.T) {
	doc := NewDocument()

	first := mustJSON(t, BackgroundBlock{Title: "V1", Synopsis: "A kingdom under glass."})
	require.NoError(t, applyBlock(doc, BlockBackground, first))
	require.NoError(t, applyBlock(doc, BlockBackground, first))
	assert.Equal(t, "V1", doc.Blocks.Background.Title)

	second := mustJSON(t, BackgroundBlock{Title: "V2", Synopsis: "Rewritten entirely."})
	require.NoError(t, applyBlock(doc, BlockBackground, second))
	assert.Equal(t, "V2", doc.Blocks.Background.Title)
	assert.Equal(t, "Rewritten entirely.", doc.Blocks.Background.Synopsis)
}

func TestBackgroundLockedRejectsWrite(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, applyBlock(doc, BlockBackground, mustJSON(t, BackgroundBlock{Synopsis: "x"})))
	doc.Locks[BlockBackground] = true

	err := applyBlock(doc, BlockBackground, mustJSON(t, BackgroundBlock{Synopsis: "y"}))
	assert.ErrorIs(t, err, ErrBlockLocked)
	assert.Equal(t, "x", doc.Blocks.Background.Synopsis)
}

func TestPlayerHooksAppendDuplicates(t *testing.T) {
	doc := NewDocument()
	hook := mustJSON(t, PlayerHook{Name: "Mara"})

	require.NoError(t, applyBlock(doc, BlockPlayerHooks, hook))
	require.NoError(t, applyBlock(doc, BlockPlayerHooks, hook))

	require.Len(t, doc.Blocks.PlayerHooks, 2)
	assert.Equal(t, doc.Blocks.PlayerHooks[0], doc.Blocks.PlayerHooks[1])
}

func TestPlayerHooksAcceptArray(t *testing.T) {
	doc := NewDocument()
	hooks := mustJSON(t, []PlayerHook{{Name: "Mara"}, {Name: "Teo"}})

	require.NoError(t, applyBlock(doc, BlockPlayerHooks, hooks))
	require.Len(t, doc.Blocks.PlayerHooks, 2)
	assert.Equal(t, "Teo", doc.Blocks.PlayerHooks[1].Name)
}

func TestWorldSeedsCapKeepsMostRecent(t *testing.T) {
	doc := NewDocument()

	var names []string
	for i := 0; i < maxSeedEntries+5; i++ {
		name := string(rune('a'+i%26)) + "-faction"
		names = append(names, name)
		payload := mustJSON(t, WorldSeeds{Factions: []string{name}})
		require.NoError(t, applyBlock(doc, BlockWorldSeeds, payload))
	}

	got := doc.Blocks.WorldSeeds.Factions
	require.Len(t, got, maxSeedEntries)
	assert.Equal(t, names[len(names)-maxSeedEntries:], got)
}

func TestWorldSeedsArraysIndependent(t *testing.T) {
	doc := NewDocument()

	require.NoError(t, applyBlock(doc, BlockWorldSeeds, mustJSON(t, WorldSeeds{Factions: []string{"Gilded Hand"}})))
	require.NoError(t, applyBlock(doc, BlockWorldSeeds, mustJSON(t, WorldSeeds{Locations: []string{"Saltmarsh"}})))

	assert.Equal(t, []string{"Gilded Hand"}, doc.Blocks.WorldSeeds.Factions)
	assert.Equal(t, []string{"Saltmarsh"}, doc.Blocks.WorldSeeds.Locations)
}

func TestStylePrefsShallowMergeAdditiveDoNots(t *testing.T) {
	doc := NewDocument()

	require.NoError(t, applyBlock(doc, BlockStylePrefs, mustJSON(t, StylePrefs{Tone: "grim", DoNots: []string{"no spiders"}})))
	require.NoError(t, applyBlock(doc, BlockStylePrefs, mustJSON(t, StylePrefs{Pacing: "slow", DoNots: []string{"no drowning"}})))

	prefs := doc.Blocks.StylePrefs
	assert.Equal(t, "grim", prefs.Tone)
	assert.Equal(t, "slow", prefs.Pacing)
	assert.Equal(t, []string{"no spiders", "no drowning"}, prefs.DoNots)
}

func TestCustomDeepMergeReplacesArrays(t *testing.T) {
	doc := NewDocument()

	require.NoError(t, applyBlock(doc, BlockCustom, []byte(`{"house":{"rules":["a"],"open":true}}`)))
	require.NoError(t, applyBlock(doc, BlockCustom, []byte(`{"house":{"rules":["b","c"]},"extra":1}`)))

	house, ok := doc.Blocks.Custom["house"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"b", "c"}, house["rules"])
	assert.Equal(t, true, house["open"])
	assert.Equal(t, float64(1), doc.Blocks.Custom["extra"])
}

func TestChainOrdersNormalized(t *testing.T) {
	doc := NewDocument()
	payload := mustJSON(t, MacroChain{ID: "ch1", Scenes: []MacroScene{
		{ID: "s1", Order: 9, Title: "Arrival"},
		{Title: "The Vault"},
		{ID: "s3", Order: 1, Title: "Collapse"},
	}})

	require.NoError(t, applyBlock(doc, BlockMacroChain, payload))

	chain := doc.Chain("ch1")
	require.NotNil(t, chain)
	assert.Equal(t, ChainDraft, chain.Status)
	require.Len(t, chain.Scenes, 3)
	for i, sc := range chain.Scenes {
		assert.Equal(t, i+1, sc.Order)
		assert.NotEmpty(t, sc.ID)
	}
	assert.Equal(t, "Arrival", chain.Scenes[0].Title)
	assert.Equal(t, "Collapse", chain.Scenes[2].Title)
}

func TestChainDeleteRenumbers(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, applyBlock(doc, BlockMacroChain, mustJSON(t, MacroChain{ID: "ch1", Scenes: []MacroScene{
		{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}, {ID: "s3", Title: "Three"},
	}})))

	// Re-submit without the middle scene.
	require.NoError(t, applyBlock(doc, BlockMacroChain, mustJSON(t, MacroChain{ID: "ch1", Scenes: []MacroScene{
		{ID: "s1", Title: "One"}, {ID: "s3", Title: "Three"},
	}})))

	chain := doc.Chain("ch1")
	assert.Equal(t, ChainEdited, chain.Status)
	require.Len(t, chain.Scenes, 2)
	assert.Equal(t, 1, chain.Scenes[0].Order)
	assert.Equal(t, 2, chain.Scenes[1].Order)
}

func TestChainLockedRejectsWrite(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, applyBlock(doc, BlockMacroChain, mustJSON(t, MacroChain{ID: "ch1", Scenes: []MacroScene{{ID: "s1", Title: "One"}}})))
	doc.Chain("ch1").Status = ChainLocked

	err := applyBlock(doc, BlockMacroChain, mustJSON(t, MacroChain{ID: "ch1", Scenes: []MacroScene{{ID: "s1", Title: "Other"}}}))
	assert.ErrorIs(t, err, ErrBlockLocked)
}

func TestScenePreservesIdentityAndUses(t *testing.T) {
	doc := NewDocument()
	putScene(doc, &SceneDetail{ID: "s1", ChainID: "ch1", Order: 2, Status: SceneGenerated, Uses: map[string]int64{"backgroundV": 1}})

	payload := mustJSON(t, SceneDetail{ID: "s1", ChainID: "other", Order: 9, Narrative: "New text."})
	require.NoError(t, applyBlock(doc, BlockSceneDetail, payload))

	sc := doc.Scene("s1")
	assert.Equal(t, "ch1", sc.ChainID)
	assert.Equal(t, 2, sc.Order)
	assert.Equal(t, SceneEdited, sc.Status)
	assert.Equal(t, map[string]int64{"backgroundV": 1}, sc.Uses)
}

func TestSceneWithoutNarrativeIsDraft(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, applyBlock(doc, BlockSceneDetail, mustJSON(t, SceneDetail{ID: "s1", Order: 1})))
	assert.Equal(t, SceneDraft, doc.Scene("s1").Status)
}

func TestSceneLockedRejectsWrite(t *testing.T) {
	doc := NewDocument()
	putScene(doc, &SceneDetail{ID: "s1", Order: 1, Status: SceneLocked})

	err := applyBlock(doc, BlockSceneDetail, mustJSON(t, SceneDetail{ID: "s1", Narrative: "x"}))
	assert.ErrorIs(t, err, ErrBlockLocked)
}

func TestInvalidPayloads(t *testing.T) {
	doc := NewDocument()

	cases := map[BlockType]json.RawMessage{
		BlockBackground:  []byte(`{"title":"no synopsis"}`),
		BlockCharacters:  []byte(`{"cast":[]}`),
		BlockMacroChain:  []byte(`{"id":"ch1","scenes":[]}`),
		BlockSceneDetail: []byte(`{"narrative":"missing id"}`),
		BlockPlayerHooks: []byte(`[]`),
		BlockWorldSeeds:  []byte(`{}`),
		BlockCustom:      []byte(`{}`),
	}
	for bt, payload := range cases {
		err := applyBlock(doc, bt, payload)
		assert.ErrorIs(t, err, ErrInvalidPayload, "block type %s", bt)
	}

	err := applyBlock(doc, BlockBackground, []byte(`{broken`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestUnknownBlockType(t *testing.T) {
	doc := NewDocument()
	err := applyBlock(doc, BlockType("mystery"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidBlockType)

	_, err = ParseBlockType("mystery")
	assert.ErrorIs(t, err, ErrInvalidBlockType)

	bt, err := ParseBlockType("world_seeds")
	require.NoError(t, err)
	assert.Equal(t, BlockWorldSeeds, bt)
}

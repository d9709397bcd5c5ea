package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockedScene(doc *Document, id string, order int, out ContextOut) {
	putScene(doc, &SceneDetail{ID: id, ChainID: "ch1", Order: order, Status: SceneLocked, ContextOut: out})
	doc.Versions.Scenes[id] = 1
}

func TestEffectiveContextConcatenatesAllLockedPredecessors(t *testing.T) {
	doc := NewDocument()
	lockedScene(doc, "s1", 1, ContextOut{KeyEvents: []string{"A"}})
	lockedScene(doc, "s2", 2, ContextOut{KeyEvents: []string{"B"}})
	lockedScene(doc, "s3", 3, ContextOut{KeyEvents: []string{"C"}})

	eff := buildEffective("sess", doc, 4)

	assert.Equal(t, []string{"A", "B", "C"}, eff.Priors.KeyEvents, "no truncation, order preserved")
	assert.Equal(t, []string{"s1", "s2", "s3"}, eff.BuiltFrom)
}

func TestEffectiveContextExcludesUnlockedScenes(t *testing.T) {
	doc := NewDocument()
	lockedScene(doc, "s1", 1, ContextOut{KeyEvents: []string{"A"}})
	putScene(doc, &SceneDetail{ID: "s2", Order: 2, Status: SceneGenerated, ContextOut: ContextOut{KeyEvents: []string{"B"}}})
	putScene(doc, &SceneDetail{ID: "s3", Order: 3, Status: SceneNeedsRegen, ContextOut: ContextOut{KeyEvents: []string{"C"}}})

	eff := buildEffective("sess", doc, 4)

	assert.Equal(t, []string{"A"}, eff.Priors.KeyEvents)
	assert.Equal(t, []string{"s1"}, eff.BuiltFrom)
}

func TestEffectiveContextRespectsCursor(t *testing.T) {
	doc := NewDocument()
	lockedScene(doc, "s1", 1, ContextOut{KeyEvents: []string{"A"}})
	lockedScene(doc, "s2", 2, ContextOut{KeyEvents: []string{"B"}})

	eff := buildEffective("sess", doc, 2)

	assert.Equal(t, []string{"A"}, eff.Priors.KeyEvents, "only strictly earlier orders contribute")
}

func TestEffectiveContextMapsLastWriterWins(t *testing.T) {
	doc := NewDocument()
	lockedScene(doc, "s1", 1, ContextOut{
		StateChanges:     map[string]any{"trust_level_host": float64(1), "gate_open": true},
		NPCRelationships: map[string]any{"mara": "ally"},
	})
	lockedScene(doc, "s2", 2, ContextOut{
		StateChanges: map[string]any{"trust_level_host": float64(-1)},
	})

	eff := buildEffective("sess", doc, 3)

	assert.Equal(t, float64(-1), eff.Priors.StateChanges["trust_level_host"])
	assert.Equal(t, true, eff.Priors.StateChanges["gate_open"])
	assert.Equal(t, "ally", eff.Priors.NPCRelationships["mara"])
}

func TestEffectiveContextBlocksOnlyWhenLocked(t *testing.T) {
	doc := NewDocument()
	doc.Blocks.Background = &BackgroundBlock{Title: "T", Synopsis: "S"}
	doc.Blocks.Characters = &CharactersBlock{Cast: []Character{{Name: "Mara"}}}

	eff := buildEffective("sess", doc, 1)
	assert.Nil(t, eff.Background)
	assert.Nil(t, eff.Characters)

	doc.Locks[BlockBackground] = true
	doc.Versions.Background = 1

	eff = buildEffective("sess", doc, 1)
	require.NotNil(t, eff.Background)
	assert.Equal(t, "T", eff.Background.Title)
	assert.Nil(t, eff.Characters)
}

func TestEffectiveContextVersionsSnapshot(t *testing.T) {
	doc := NewDocument()
	doc.Locks[BlockBackground] = true
	doc.Versions.Background = 2
	doc.Blocks.Background = &BackgroundBlock{Synopsis: "S"}
	doc.Blocks.Chains = map[string]*MacroChain{"ch1": {ID: "ch1", Status: ChainLocked}}
	doc.Versions.MacroSnapshot = 1
	lockedScene(doc, "s1", 1, ContextOut{})

	eff := buildEffective("sess", doc, 2)

	assert.Equal(t, map[string]int64{
		"backgroundV":    2,
		"macroSnapshotV": 1,
		"sceneV:s1":      1,
	}, eff.Versions)
}

func TestIsStale(t *testing.T) {
	current := map[string]int64{"backgroundV": 2, "charactersV": 1, "sceneV:s1": 1}

	assert.False(t, IsStale(map[string]int64{"backgroundV": 2, "sceneV:s1": 1}, current))
	assert.True(t, IsStale(map[string]int64{"backgroundV": 1}, current))
	assert.True(t, IsStale(map[string]int64{"sceneV:gone": 1}, current), "missing counters compare against zero")
	assert.False(t, IsStale(nil, current))
}

func TestStaleKeysSorted(t *testing.T) {
	uses := map[string]int64{"sceneV:s9": 1, "backgroundV": 1, "charactersV": 1}
	current := map[string]int64{"backgroundV": 2, "charactersV": 2, "sceneV:s9": 2}

	assert.Equal(t, []string{"backgroundV", "charactersV", "sceneV:s9"}, staleKeys(uses, current))
}

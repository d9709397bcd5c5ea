package session

import "time"

// BlockType identifies an independently lockable unit of session content.
type BlockType string

const (
	BlockBackground  BlockType = "background"
	BlockCharacters  BlockType = "characters"
	BlockMacroChain  BlockType = "macro_chain"
	BlockSceneDetail BlockType = "scene_detail"
	BlockPlayerHooks BlockType = "player_hooks"
	BlockWorldSeeds  BlockType = "world_seeds"
	BlockStylePrefs  BlockType = "style_prefs"
	BlockCustom      BlockType = "custom"
)

// BlockTypes returns the closed set of valid block types.
func BlockTypes() []BlockType {
	return []BlockType{
		BlockBackground, BlockCharacters, BlockMacroChain, BlockSceneDetail,
		BlockPlayerHooks, BlockWorldSeeds, BlockStylePrefs, BlockCustom,
	}
}

// ChainStatus represents the editorial state of a macro chain.
type ChainStatus string

const (
	ChainDraft  ChainStatus = "draft"
	ChainEdited ChainStatus = "edited"
	ChainLocked ChainStatus = "locked"
)

// SceneStatus represents the editorial state of a scene detail.
type SceneStatus string

const (
	SceneDraft      SceneStatus = "draft"
	SceneGenerated  SceneStatus = "generated"
	SceneEdited     SceneStatus = "edited"
	SceneLocked     SceneStatus = "locked"
	SceneNeedsRegen SceneStatus = "needs_regen"
)

// Severity classifies the downstream impact of a scene edit.
type Severity string

const (
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

// Document is the versioned session document: every generation artifact a
// session owns, its lock flags, and its version counters. One document per
// session, always loaded and saved whole.
type Document struct {
	Blocks    Blocks             `json:"blocks"`
	Locks     map[BlockType]bool `json:"locks"`
	Versions  Versions           `json:"version_counters"`
	Version   int64              `json:"document_version"`
	UpdatedAt time.Time          `json:"updated_at"`
	Activity  []ActivityEntry    `json:"activity,omitempty"`
}

// Blocks holds the session's content, one field per block type.
type Blocks struct {
	Background  *BackgroundBlock        `json:"background,omitempty"`
	Characters  *CharactersBlock        `json:"characters,omitempty"`
	Chains      map[string]*MacroChain  `json:"chains,omitempty"`
	Scenes      map[string]*SceneDetail `json:"scenes,omitempty"`
	PlayerHooks []PlayerHook            `json:"player_hooks,omitempty"`
	WorldSeeds  *WorldSeeds             `json:"world_seeds,omitempty"`
	StylePrefs  *StylePrefs             `json:"style_prefs,omitempty"`
	Custom      map[string]any          `json:"custom,omitempty"`
}

// Versions holds the per-block version counters. A counter increments only
// when its block transitions to locked, never on edits while unlocked.
type Versions struct {
	Background    int64            `json:"backgroundV"`
	Characters    int64            `json:"charactersV"`
	MacroSnapshot int64            `json:"macroSnapshotV"`
	Scenes        map[string]int64 `json:"scenes,omitempty"`
}

// BackgroundBlock is the campaign's story background.
type BackgroundBlock struct {
	Title     string   `json:"title"`
	Synopsis  string   `json:"synopsis"`
	Setting   string   `json:"setting,omitempty"`
	Era       string   `json:"era,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Factions  []string `json:"factions,omitempty"`
	Hooks     []string `json:"hooks,omitempty"`
	Tone      string   `json:"tone,omitempty"`
}

// CharactersBlock is the campaign's cast of NPCs.
type CharactersBlock struct {
	Cast []Character `json:"cast"`
}

// Character is a single NPC.
type Character struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Goal   string `json:"goal,omitempty"`
	Secret string `json:"secret,omitempty"`
	Bond   string `json:"bond,omitempty"`
	Flaw   string `json:"flaw,omitempty"`
}

// MacroChain is the ordered scene skeleton for a campaign arc. While draft or
// edited its scenes may be freely reordered, edited, deleted, or added;
// locking freezes the skeleton as the basis for per-scene detailing.
type MacroChain struct {
	ID     string       `json:"id"`
	Title  string       `json:"title,omitempty"`
	Status ChainStatus  `json:"status"`
	Scenes []MacroScene `json:"scenes"`
}

// MacroScene is one entry in a macro chain. Order values form a contiguous
// 1..N sequence matching array position.
type MacroScene struct {
	ID        string `json:"id"`
	Order     int    `json:"order"`
	Title     string `json:"title"`
	Objective string `json:"objective,omitempty"`
}

// SceneDetail is the generated narrative detail for one macro scene.
type SceneDetail struct {
	ID         string           `json:"id"`
	ChainID    string           `json:"chain_id,omitempty"`
	Order      int              `json:"order"`
	Status     SceneStatus      `json:"status"`
	Version    int64            `json:"version"`
	Title      string           `json:"title,omitempty"`
	Narrative  string           `json:"narrative,omitempty"`
	ContextOut ContextOut       `json:"context_out"`
	Uses       map[string]int64 `json:"uses,omitempty"`
}

// ContextOut carries the structured facts a scene contributes forward to
// later scenes. Field keys follow the generation schema; delta key paths
// reference them verbatim.
type ContextOut struct {
	KeyEvents          []string       `json:"keyEvents,omitempty"`
	RevealedInfo       []string       `json:"revealedInfo,omitempty"`
	PlotThreads        []string       `json:"plotThreads,omitempty"`
	PlayerDecisions    []string       `json:"playerDecisions,omitempty"`
	StateChanges       map[string]any `json:"stateChanges,omitempty"`
	NPCRelationships   map[string]any `json:"npcRelationships,omitempty"`
	EnvironmentalState map[string]any `json:"environmentalState,omitempty"`
}

// PlayerHook is an accumulated player-facing hook. Hooks append in arrival
// order; duplicates are allowed.
type PlayerHook struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Drive       string `json:"drive,omitempty"`
}

// WorldSeeds accumulates world-building fragments. Each array is
// independently additive and capped to the most recent entries.
type WorldSeeds struct {
	Factions    []string `json:"factions,omitempty"`
	Locations   []string `json:"locations,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Rumors      []string `json:"rumors,omitempty"`
}

// StylePrefs holds authoring style preferences. Scalar fields shallow-merge;
// DoNots is additive.
type StylePrefs struct {
	Tone       string   `json:"tone,omitempty"`
	Pacing     string   `json:"pacing,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Rating     string   `json:"rating,omitempty"`
	DoNots     []string `json:"do_nots,omitempty"`
}

// EffectiveContext is the merged set of locked upstream facts allowed to feed
// the next generation step.
type EffectiveContext struct {
	SessionID  string           `json:"session_id"`
	UpToOrder  int              `json:"up_to_order"`
	Background *BackgroundBlock `json:"background,omitempty"`
	Characters *CharactersBlock `json:"characters,omitempty"`
	Priors     ContextOut       `json:"priors"`
	BuiltFrom  []string         `json:"built_from,omitempty"`
	Versions   map[string]int64 `json:"versions,omitempty"`
}

// AffectedScene names a downstream scene invalidated by an edit.
type AffectedScene struct {
	SceneID  string   `json:"scene_id"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
}

// Delta describes the field-level impact of a scene edit. Severity is the
// worst severity across the changed keys, empty when nothing changed.
type Delta struct {
	KeysChanged    []string        `json:"keys_changed"`
	Summary        string          `json:"summary"`
	Severity       Severity        `json:"severity,omitempty"`
	AffectedScenes []AffectedScene `json:"affected_scenes"`
}

// ChainLockResult reports a chain lock transition and its cascade.
type ChainLockResult struct {
	Chain          *MacroChain `json:"chain"`
	AffectedScenes []string    `json:"affected_scenes"`
}

// SceneLockResult reports a scene lock transition and its cascade.
type SceneLockResult struct {
	Scene          *SceneDetail `json:"scene"`
	AffectedScenes []string     `json:"affected_scenes"`
}

// EditResult reports an applied scene edit: the stored detail, the computed
// delta, and the scenes marked needs_regen as a consequence.
type EditResult struct {
	Scene        *SceneDetail `json:"scene"`
	Delta        Delta        `json:"delta"`
	MarkedScenes []string     `json:"marked_scenes"`
}

// StalenessResult reports whether a scene's recorded inputs still match the
// session's current version counters.
type StalenessResult struct {
	SceneID   string   `json:"scene_id"`
	Stale     bool     `json:"stale"`
	StaleKeys []string `json:"stale_keys,omitempty"`
}

// Info is a lightweight session listing entry.
type Info struct {
	ID              string    `json:"id"`
	DocumentVersion int64     `json:"document_version"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Version counter keys as they appear in uses snapshots.
const (
	counterBackground = "backgroundV"
	counterCharacters = "charactersV"
	counterMacro      = "macroSnapshotV"
)

func sceneCounterKey(sceneID string) string {
	return "sceneV:" + sceneID
}

// NewDocument returns a freshly initialized empty session document.
func NewDocument() *Document {
	return &Document{
		Locks: make(map[BlockType]bool),
		Versions: Versions{
			Scenes: make(map[string]int64),
		},
	}
}

// CurrentVersions flattens the document's version counters into the key space
// used by scene uses snapshots.
func (d *Document) CurrentVersions() map[string]int64 {
	out := map[string]int64{
		counterBackground: d.Versions.Background,
		counterCharacters: d.Versions.Characters,
		counterMacro:      d.Versions.MacroSnapshot,
	}
	for id, v := range d.Versions.Scenes {
		out[sceneCounterKey(id)] = v
	}
	return out
}

// Scene returns the scene detail with the given ID, or nil.
func (d *Document) Scene(sceneID string) *SceneDetail {
	if d.Blocks.Scenes == nil {
		return nil
	}
	return d.Blocks.Scenes[sceneID]
}

// Chain returns the macro chain with the given ID, or nil.
func (d *Document) Chain(chainID string) *MacroChain {
	if d.Blocks.Chains == nil {
		return nil
	}
	return d.Blocks.Chains[chainID]
}

func (d *Document) touch(now time.Time) {
	d.Version++
	d.UpdatedAt = now
}

// scenesByOrder returns all scene details sorted by order, ties broken by ID.
func (d *Document) scenesByOrder() []*SceneDetail {
	scenes := make([]*SceneDetail, 0, len(d.Blocks.Scenes))
	for _, sc := range d.Blocks.Scenes {
		scenes = append(scenes, sc)
	}
	sortScenes(scenes)
	return scenes
}

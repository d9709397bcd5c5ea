package session

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// maxSeedEntries caps each world-seeds array, keeping the most recent entries.
const maxSeedEntries = 20

// applyBlock merges a validated payload into the document under the block
// type's merge policy. This is the only place merge policy is defined.
// Background, characters, chains, and scenes replace; player hooks append;
// world seeds append per array with a cap; style prefs shallow-merge; custom
// deep-merges. Merging never touches the per-block version counters.
func applyBlock(doc *Document, blockType BlockType, payload json.RawMessage) error {
	switch blockType {
	case BlockBackground:
		if doc.Locks[BlockBackground] {
			return fmt.Errorf("%w: background", ErrBlockLocked)
		}
		block, err := decodeBackground(payload)
		if err != nil {
			return err
		}
		doc.Blocks.Background = block
	case BlockCharacters:
		if doc.Locks[BlockCharacters] {
			return fmt.Errorf("%w: characters", ErrBlockLocked)
		}
		block, err := decodeCharacters(payload)
		if err != nil {
			return err
		}
		doc.Blocks.Characters = block
	case BlockMacroChain:
		chain, err := decodeChain(payload)
		if err != nil {
			return err
		}
		return mergeChain(doc, chain)
	case BlockSceneDetail:
		detail, err := decodeScene(payload)
		if err != nil {
			return err
		}
		return mergeScene(doc, detail)
	case BlockPlayerHooks:
		if doc.Locks[BlockPlayerHooks] {
			return fmt.Errorf("%w: player_hooks", ErrBlockLocked)
		}
		hooks, err := decodePlayerHooks(payload)
		if err != nil {
			return err
		}
		doc.Blocks.PlayerHooks = append(doc.Blocks.PlayerHooks, hooks...)
	case BlockWorldSeeds:
		if doc.Locks[BlockWorldSeeds] {
			return fmt.Errorf("%w: world_seeds", ErrBlockLocked)
		}
		seeds, err := decodeWorldSeeds(payload)
		if err != nil {
			return err
		}
		doc.Blocks.WorldSeeds = mergeWorldSeeds(doc.Blocks.WorldSeeds, seeds)
	case BlockStylePrefs:
		if doc.Locks[BlockStylePrefs] {
			return fmt.Errorf("%w: style_prefs", ErrBlockLocked)
		}
		prefs, err := decodeStylePrefs(payload)
		if err != nil {
			return err
		}
		doc.Blocks.StylePrefs = mergeStylePrefs(doc.Blocks.StylePrefs, prefs)
	case BlockCustom:
		if doc.Locks[BlockCustom] {
			return fmt.Errorf("%w: custom", ErrBlockLocked)
		}
		custom, err := decodeCustom(payload)
		if err != nil {
			return err
		}
		doc.Blocks.Custom = deepMerge(doc.Blocks.Custom, custom)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlockType, blockType)
	}
	return nil
}

// mergeChain replaces the chain with the incoming skeleton. A locked chain
// rejects the write; an existing chain becomes edited, a new one starts as
// draft. Scene orders are always derived from array position.
func mergeChain(doc *Document, incoming *MacroChain) error {
	if incoming.ID == "" {
		incoming.ID = uuid.NewString()
	}
	existing := doc.Chain(incoming.ID)
	if existing != nil && existing.Status == ChainLocked {
		return fmt.Errorf("%w: chain %s", ErrBlockLocked, incoming.ID)
	}

	if existing != nil {
		incoming.Status = ChainEdited
	} else {
		incoming.Status = ChainDraft
	}
	normalizeChainOrders(incoming)

	if doc.Blocks.Chains == nil {
		doc.Blocks.Chains = make(map[string]*MacroChain)
	}
	doc.Blocks.Chains[incoming.ID] = incoming
	return nil
}

// mergeScene replaces the scene detail with the incoming content. Identity
// fields and the uses snapshot survive from the stored scene; the status
// reflects that content arrived from a caller, not from generation.
func mergeScene(doc *Document, incoming *SceneDetail) error {
	existing := doc.Scene(incoming.ID)
	if existing != nil && existing.Status == SceneLocked {
		return fmt.Errorf("%w: scene %s", ErrBlockLocked, incoming.ID)
	}

	if existing != nil {
		incoming.ChainID = existing.ChainID
		incoming.Order = existing.Order
		if incoming.Uses == nil {
			incoming.Uses = existing.Uses
		}
	}
	if incoming.Narrative != "" {
		incoming.Status = SceneEdited
	} else {
		incoming.Status = SceneDraft
	}
	incoming.Version = doc.Versions.Scenes[incoming.ID]

	putScene(doc, incoming)
	return nil
}

// putScene stores a scene detail and ensures its version counter entry exists.
func putScene(doc *Document, detail *SceneDetail) {
	if doc.Blocks.Scenes == nil {
		doc.Blocks.Scenes = make(map[string]*SceneDetail)
	}
	doc.Blocks.Scenes[detail.ID] = detail
	if doc.Versions.Scenes == nil {
		doc.Versions.Scenes = make(map[string]int64)
	}
	if _, ok := doc.Versions.Scenes[detail.ID]; !ok {
		doc.Versions.Scenes[detail.ID] = 0
	}
}

// normalizeChainOrders assigns missing scene IDs and renumbers orders to the
// contiguous 1..N sequence given by array position.
func normalizeChainOrders(chain *MacroChain) {
	for i := range chain.Scenes {
		if chain.Scenes[i].ID == "" {
			chain.Scenes[i].ID = uuid.NewString()
		}
		chain.Scenes[i].Order = i + 1
	}
}

func mergeWorldSeeds(existing, incoming *WorldSeeds) *WorldSeeds {
	if existing == nil {
		existing = &WorldSeeds{}
	}
	existing.Factions = appendCapped(existing.Factions, incoming.Factions)
	existing.Locations = appendCapped(existing.Locations, incoming.Locations)
	existing.Constraints = appendCapped(existing.Constraints, incoming.Constraints)
	existing.Rumors = appendCapped(existing.Rumors, incoming.Rumors)
	return existing
}

func appendCapped(dst, src []string) []string {
	out := append(dst, src...)
	if len(out) > maxSeedEntries {
		out = out[len(out)-maxSeedEntries:]
	}
	return out
}

func mergeStylePrefs(existing, incoming *StylePrefs) *StylePrefs {
	if existing == nil {
		existing = &StylePrefs{}
	}
	if incoming.Tone != "" {
		existing.Tone = incoming.Tone
	}
	if incoming.Pacing != "" {
		existing.Pacing = incoming.Pacing
	}
	if incoming.Difficulty != "" {
		existing.Difficulty = incoming.Difficulty
	}
	if incoming.Rating != "" {
		existing.Rating = incoming.Rating
	}
	existing.DoNots = append(existing.DoNots, incoming.DoNots...)
	return existing
}

// deepMerge merges src into dst recursively. Nested maps merge; arrays and
// scalars replace at the leaf.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

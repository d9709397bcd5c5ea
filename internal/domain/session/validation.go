package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload decoders. Each parses the raw JSON for its block type and checks
// the fields a merge cannot proceed without. Unknown extra fields are
// tolerated; structurally invalid or empty payloads fail with
// ErrInvalidPayload.

func decodeBackground(raw json.RawMessage) (*BackgroundBlock, error) {
	var block BackgroundBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("%w: background: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(block.Synopsis) == "" {
		return nil, fmt.Errorf("%w: background synopsis is required", ErrInvalidPayload)
	}
	return &block, nil
}

func decodeCharacters(raw json.RawMessage) (*CharactersBlock, error) {
	var block CharactersBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("%w: characters: %v", ErrInvalidPayload, err)
	}
	if len(block.Cast) == 0 {
		return nil, fmt.Errorf("%w: characters cast is empty", ErrInvalidPayload)
	}
	for i, c := range block.Cast {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%w: character %d has no name", ErrInvalidPayload, i)
		}
	}
	return &block, nil
}

func decodeChain(raw json.RawMessage) (*MacroChain, error) {
	var chain MacroChain
	if err := json.Unmarshal(raw, &chain); err != nil {
		return nil, fmt.Errorf("%w: macro_chain: %v", ErrInvalidPayload, err)
	}
	if len(chain.Scenes) == 0 {
		return nil, fmt.Errorf("%w: macro_chain has no scenes", ErrInvalidPayload)
	}
	for i, sc := range chain.Scenes {
		if strings.TrimSpace(sc.Title) == "" {
			return nil, fmt.Errorf("%w: chain scene %d has no title", ErrInvalidPayload, i)
		}
	}
	return &chain, nil
}

func decodeScene(raw json.RawMessage) (*SceneDetail, error) {
	var detail SceneDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("%w: scene_detail: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(detail.ID) == "" {
		return nil, fmt.Errorf("%w: scene_detail id is required", ErrInvalidPayload)
	}
	return &detail, nil
}

// decodePlayerHooks accepts either a single hook object or an array of hooks.
func decodePlayerHooks(raw json.RawMessage) ([]PlayerHook, error) {
	var hooks []PlayerHook
	if err := json.Unmarshal(raw, &hooks); err != nil {
		var single PlayerHook
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("%w: player_hooks: %v", ErrInvalidPayload, err)
		}
		hooks = []PlayerHook{single}
	}
	if len(hooks) == 0 {
		return nil, fmt.Errorf("%w: player_hooks is empty", ErrInvalidPayload)
	}
	for i, h := range hooks {
		if strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("%w: player hook %d has no name", ErrInvalidPayload, i)
		}
	}
	return hooks, nil
}

func decodeWorldSeeds(raw json.RawMessage) (*WorldSeeds, error) {
	var seeds WorldSeeds
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("%w: world_seeds: %v", ErrInvalidPayload, err)
	}
	if len(seeds.Factions)+len(seeds.Locations)+len(seeds.Constraints)+len(seeds.Rumors) == 0 {
		return nil, fmt.Errorf("%w: world_seeds has no entries", ErrInvalidPayload)
	}
	return &seeds, nil
}

func decodeStylePrefs(raw json.RawMessage) (*StylePrefs, error) {
	var prefs StylePrefs
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("%w: style_prefs: %v", ErrInvalidPayload, err)
	}
	return &prefs, nil
}

func decodeCustom(raw json.RawMessage) (map[string]any, error) {
	var custom map[string]any
	if err := json.Unmarshal(raw, &custom); err != nil {
		return nil, fmt.Errorf("%w: custom: %v", ErrInvalidPayload, err)
	}
	if len(custom) == 0 {
		return nil, fmt.Errorf("%w: custom payload is empty", ErrInvalidPayload)
	}
	return custom, nil
}

// ParseBlockType validates a caller-supplied block type string.
func ParseBlockType(s string) (BlockType, error) {
	bt := BlockType(s)
	for _, known := range BlockTypes() {
		if bt == known {
			return bt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBlockType, s)
}

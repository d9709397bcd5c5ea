package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/loreweave/internal/domain/session"
)

// sceneOutput is the provider's wire shape for a scene_detail step. The
// contextOut key and its fields follow the generation schema.
type sceneOutput struct {
	Title      string             `json:"title"`
	Narrative  string             `json:"narrative"`
	ContextOut session.ContextOut `json:"contextOut"`
}

// validateOutput checks a provider result against the step's schema before
// anything is persisted. For scene steps it returns the parsed output.
func validateOutput(step StepKind, payload json.RawMessage) (*sceneOutput, error) {
	switch step {
	case StepBackground:
		var bg session.BackgroundBlock
		if err := json.Unmarshal(payload, &bg); err != nil {
			return nil, fmt.Errorf("%w: background: %v", ErrInvalidOutput, err)
		}
		if strings.TrimSpace(bg.Synopsis) == "" {
			return nil, fmt.Errorf("%w: background synopsis is empty", ErrInvalidOutput)
		}
		return nil, nil

	case StepCharacters:
		var chars session.CharactersBlock
		if err := json.Unmarshal(payload, &chars); err != nil {
			return nil, fmt.Errorf("%w: characters: %v", ErrInvalidOutput, err)
		}
		if len(chars.Cast) == 0 {
			return nil, fmt.Errorf("%w: characters cast is empty", ErrInvalidOutput)
		}
		for i, c := range chars.Cast {
			if strings.TrimSpace(c.Name) == "" {
				return nil, fmt.Errorf("%w: cast[%d] has no name", ErrInvalidOutput, i)
			}
		}
		return nil, nil

	case StepMacroChain:
		var chain session.MacroChain
		if err := json.Unmarshal(payload, &chain); err != nil {
			return nil, fmt.Errorf("%w: macro chain: %v", ErrInvalidOutput, err)
		}
		if len(chain.Scenes) == 0 {
			return nil, fmt.Errorf("%w: macro chain has no scenes", ErrInvalidOutput)
		}
		for i, sc := range chain.Scenes {
			if strings.TrimSpace(sc.Title) == "" {
				return nil, fmt.Errorf("%w: scenes[%d] has no title", ErrInvalidOutput, i)
			}
		}
		return nil, nil

	case StepSceneDetail:
		var out sceneOutput
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("%w: scene detail: %v", ErrInvalidOutput, err)
		}
		if strings.TrimSpace(out.Narrative) == "" {
			return nil, fmt.Errorf("%w: scene narrative is empty", ErrInvalidOutput)
		}
		return &out, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
)

// Stub is a deterministic provider producing canned artifacts derived from
// the request. It performs no I/O and exists for development and tests; the
// factory logs loudly when it is selected.
type Stub struct{}

// NewStub creates the stub provider.
func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	var payload any
	switch req.Step {
	case generation.StepBackground:
		payload = session.BackgroundBlock{
			Title:    "The Hollow Crown",
			Synopsis: synopsisFor(req.Guidance),
			Setting:  "A river kingdom after a disputed succession",
			Tone:     "low-magic intrigue",
			Hooks:    []string{"The regent's seal has gone missing"},
		}
	case generation.StepCharacters:
		payload = session.CharactersBlock{Cast: []session.Character{
			{ID: "regent", Name: "Regent Ilsa Varn", Role: "antagonist", Goal: "hold the throne through the winter"},
			{ID: "archivist", Name: "Brother Calder", Role: "ally", Secret: "forged the late king's will"},
			{ID: "smuggler", Name: "Nev", Role: "wildcard", Goal: "sell the seal to the highest bidder"},
		}}
	case generation.StepMacroChain:
		payload = session.MacroChain{
			Title: "The Seal of Succession",
			Scenes: []session.MacroScene{
				{Title: "The Empty Reliquary", Objective: "discover the theft"},
				{Title: "The Archivist's Price", Objective: "learn who forged the will"},
				{Title: "Night Market Exchange", Objective: "intercept the seal"},
			},
		}
	case generation.StepSceneDetail:
		title := "Untitled Scene"
		if req.Scene != nil && req.Scene.Title != "" {
			title = req.Scene.Title
		}
		priors := 0
		if req.Context != nil {
			priors = len(req.Context.BuiltFrom)
		}
		payload = map[string]any{
			"title":     title,
			"narrative": fmt.Sprintf("The party presses on. %q opens with %d earlier scenes weighing on their choices.", title, priors),
			"contextOut": session.ContextOut{
				KeyEvents:    []string{fmt.Sprintf("%s resolved", title)},
				StateChanges: map[string]any{"party_morale": "steady"},
			},
		}
	default:
		return nil, fmt.Errorf("%w: %q", generation.ErrUnknownStep, req.Step)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling stub payload: %w", err)
	}
	return &generation.Result{Payload: raw, Model: "stub"}, nil
}

func synopsisFor(guidance string) string {
	if guidance == "" {
		return "A disputed succession pulls the party into a quiet war over a missing royal seal."
	}
	return fmt.Sprintf("A disputed succession pulls the party into a quiet war over a missing royal seal. Requested focus: %s.", guidance)
}

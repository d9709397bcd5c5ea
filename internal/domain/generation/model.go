// Package generation orchestrates the content pipeline: background, then
// characters, then the macro scene chain, then per-scene detail. Each step is
// gated on its upstream blocks being locked, calls the configured provider
// once, validates the output, and persists through the session service.
package generation

import (
	"encoding/json"
	"fmt"

	"github.com/rpggio/loreweave/internal/domain/session"
)

// StepKind identifies a pipeline step.
type StepKind string

const (
	StepBackground  StepKind = "background"
	StepCharacters  StepKind = "characters"
	StepMacroChain  StepKind = "macro_chain"
	StepSceneDetail StepKind = "scene_detail"
)

// ParseStepKind validates a step name supplied by a caller.
func ParseStepKind(raw string) (StepKind, error) {
	switch StepKind(raw) {
	case StepBackground, StepCharacters, StepMacroChain, StepSceneDetail:
		return StepKind(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, raw)
	}
}

// Request carries everything a provider may use to build its prompt. Only the
// fields relevant to the step are populated.
type Request struct {
	SessionID  string                    `json:"session_id"`
	Step       StepKind                  `json:"step"`
	Guidance   string                    `json:"guidance,omitempty"`
	Background *session.BackgroundBlock  `json:"background,omitempty"`
	Characters *session.CharactersBlock  `json:"characters,omitempty"`
	Chain      *session.MacroChain       `json:"chain,omitempty"`
	Scene      *session.MacroScene       `json:"scene,omitempty"`
	Context    *session.EffectiveContext `json:"context,omitempty"`
}

// Usage reports provider token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is a provider's raw output for one step.
type Result struct {
	Payload json.RawMessage
	Model   string
	Usage   Usage
}

// RunRequest names the step and its target.
type RunRequest struct {
	SessionID string
	Step      StepKind
	ChainID   string
	SceneID   string
	Guidance  string
}

// RunResult is the persisted artifact plus provider accounting.
type RunResult struct {
	Step     StepKind             `json:"step"`
	Document *session.Document    `json:"document,omitempty"`
	Scene    *session.SceneDetail `json:"scene,omitempty"`
	Provider string               `json:"provider"`
	Model    string               `json:"model,omitempty"`
	Usage    Usage                `json:"usage"`
}

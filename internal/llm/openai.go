// Package llm provides GenerationProvider implementations: an OpenAI
// chat-completions client (also serving OpenAI-compatible endpoints via
// BaseURL) and a deterministic stub, plus the token counter used for prompt
// budgeting.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/rpggio/loreweave/internal/domain/generation"
)

const (
	backgroundSystemPrompt = `You are a tabletop RPG campaign author. Write a story background for a new campaign.
Respond with a single JSON object: {"title", "synopsis", "setting", "era", "locations": [], "factions": [], "hooks": [], "tone"}.
The synopsis is required and must carry the dramatic premise in a few sentences.`

	charactersSystemPrompt = `You are a tabletop RPG campaign author. Create the campaign's cast of NPCs from the locked background.
Respond with a single JSON object: {"cast": [{"id", "name", "role", "goal", "secret", "bond", "flaw"}]}.
Every cast member needs a name; ids are short snake_case handles.`

	chainSystemPrompt = `You are a tabletop RPG campaign author. Outline the campaign as an ordered chain of macro scenes from the locked background and cast.
Respond with a single JSON object: {"title", "scenes": [{"title", "objective"}]}.
Scenes run in play order; each needs a title and a one-line objective.`

	sceneSystemPrompt = `You are a tabletop RPG campaign author. Write the full detail for one scene of the campaign.
You receive the locked background, cast, chain skeleton, and the accumulated context from every locked earlier scene. Honor established facts exactly.
Respond with a single JSON object: {"title", "narrative", "contextOut": {"keyEvents": [], "revealedInfo": [], "plotThreads": [], "playerDecisions": [], "stateChanges": {}, "npcRelationships": {}, "environmentalState": {}}}.
The narrative is required. contextOut carries only facts later scenes must respect.`
)

// OpenAI calls a chat-completions endpoint and returns the raw JSON payload.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIConfig configures the client. BaseURL is optional and enables
// OpenAI-compatible endpoints (OpenRouter, local Ollama).
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// NewOpenAI creates the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai provider requires an api key")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai provider requires a model name")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptFor(req.Step)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	return &generation.Result{
		Payload: json.RawMessage(stripFences(resp.Choices[0].Message.Content)),
		Model:   resp.Model,
		Usage: generation.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func systemPromptFor(step generation.StepKind) string {
	switch step {
	case generation.StepBackground:
		return backgroundSystemPrompt
	case generation.StepCharacters:
		return charactersSystemPrompt
	case generation.StepMacroChain:
		return chainSystemPrompt
	default:
		return sceneSystemPrompt
	}
}

// buildUserPrompt serializes the request inputs as labeled JSON sections.
func buildUserPrompt(req generation.Request) (string, error) {
	var b strings.Builder

	write := func(label string, v any) error {
		if v == nil {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", label, err)
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", label, raw)
		return nil
	}

	if req.Background != nil {
		if err := write("Background", req.Background); err != nil {
			return "", err
		}
	}
	if req.Characters != nil {
		if err := write("Cast", req.Characters); err != nil {
			return "", err
		}
	}
	if req.Chain != nil {
		if err := write("Scene chain", req.Chain); err != nil {
			return "", err
		}
	}
	if req.Scene != nil {
		if err := write("Target scene", req.Scene); err != nil {
			return "", err
		}
	}
	if req.Context != nil {
		if err := write("Accumulated context", req.Context); err != nil {
			return "", err
		}
	}
	if req.Guidance != "" {
		fmt.Fprintf(&b, "Guidance from the author:\n%s\n", req.Guidance)
	}
	if b.Len() == 0 {
		b.WriteString("Begin a brand new campaign.")
	}
	return b.String(), nil
}

// stripFences removes a wrapping markdown code fence some models emit despite
// JSON response format.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

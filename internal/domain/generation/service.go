package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/metrics"
)

// Config bounds provider calls and prompt inputs.
type Config struct {
	Timeout            time.Duration
	ContextTokenBudget int
}

// Service runs pipeline steps end to end: gate, assemble inputs, call the
// provider, validate, persist.
type Service struct {
	sessions ContextService
	provider Provider
	counter  TokenCounter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// NewService creates a generation service.
func NewService(sessions ContextService, provider Provider, counter TokenCounter, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions: sessions,
		provider: provider,
		counter:  counter,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run executes one pipeline step. The session document is untouched unless
// the provider call succeeds and its output passes validation; a concurrent
// write to the session between read and persist fails the step with
// ErrStaleWrite so the caller can retry against fresh state.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if _, err := ParseStepKind(string(req.Step)); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", session.ErrInvalidInput)
	}

	doc, err := s.sessions.GetContext(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	baseVersion := doc.Version

	provReq, target, err := s.assemble(ctx, doc, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkBudget(provReq); err != nil {
		return nil, err
	}

	result, err := s.generate(ctx, provReq)
	if err != nil {
		return nil, err
	}

	parsed, err := validateOutput(req.Step, result.Payload)
	if err != nil {
		return nil, err
	}

	run := &RunResult{
		Step:     req.Step,
		Provider: s.provider.Name(),
		Model:    result.Model,
		Usage:    result.Usage,
	}
	s.metrics.RecordTokens(string(req.Step), "prompt", result.Usage.PromptTokens)
	s.metrics.RecordTokens(string(req.Step), "completion", result.Usage.CompletionTokens)

	switch req.Step {
	case StepSceneDetail:
		detail := &session.SceneDetail{
			ID:         target.ID,
			ChainID:    provReq.Chain.ID,
			Order:      target.Order,
			Title:      parsed.Title,
			Narrative:  parsed.Narrative,
			ContextOut: parsed.ContextOut,
		}
		stored, err := s.sessions.SaveGeneratedScene(ctx, req.SessionID, detail, baseVersion)
		if err != nil {
			return nil, err
		}
		run.Scene = stored
	default:
		updated, err := s.sessions.SaveGeneratedBlock(ctx, req.SessionID, blockTypeFor(req.Step), result.Payload, baseVersion)
		if err != nil {
			return nil, err
		}
		run.Document = updated
	}

	s.logger.Info("generation step complete",
		"session_id", req.SessionID,
		"step", req.Step,
		"provider", run.Provider,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens)
	return run, nil
}

// assemble gates the step on its upstream locks and collects the provider
// inputs. Violations fail here, before any provider call.
func (s *Service) assemble(ctx context.Context, doc *session.Document, req RunRequest) (Request, *session.MacroScene, error) {
	provReq := Request{
		SessionID: req.SessionID,
		Step:      req.Step,
		Guidance:  req.Guidance,
	}

	switch req.Step {
	case StepBackground:
		return provReq, nil, nil

	case StepCharacters:
		if !doc.Locks[session.BlockBackground] {
			return provReq, nil, fmt.Errorf("%w: background must be locked before generating characters", session.ErrNotLocked)
		}
		provReq.Background = doc.Blocks.Background
		return provReq, nil, nil

	case StepMacroChain:
		if !doc.Locks[session.BlockBackground] {
			return provReq, nil, fmt.Errorf("%w: background must be locked before generating the chain", session.ErrNotLocked)
		}
		if !doc.Locks[session.BlockCharacters] {
			return provReq, nil, fmt.Errorf("%w: characters must be locked before generating the chain", session.ErrNotLocked)
		}
		provReq.Background = doc.Blocks.Background
		provReq.Characters = doc.Blocks.Characters
		return provReq, nil, nil

	case StepSceneDetail:
		chain, target, err := findMacroScene(doc, req.ChainID, req.SceneID)
		if err != nil {
			return provReq, nil, err
		}
		if chain.Status != session.ChainLocked {
			return provReq, nil, fmt.Errorf("%w: chain %s must be locked before detailing scenes", session.ErrNotLocked, chain.ID)
		}
		if !predecessorLocked(doc, target.Order) {
			return provReq, nil, fmt.Errorf("%w: scene order %d requires scene %d locked", session.ErrPredecessorNotLocked, target.Order, target.Order-1)
		}
		eff, err := s.sessions.BuildEffectiveContext(ctx, req.SessionID, target.Order)
		if err != nil {
			return provReq, nil, err
		}
		provReq.Chain = chain
		provReq.Scene = target
		provReq.Context = eff
		return provReq, target, nil

	default:
		return provReq, nil, fmt.Errorf("%w: %q", ErrUnknownStep, req.Step)
	}
}

func (s *Service) checkBudget(req Request) error {
	if s.counter == nil || s.cfg.ContextTokenBudget <= 0 {
		return nil
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling generation inputs: %w", err)
	}
	tokens := s.counter.Count(string(raw))
	if tokens > s.cfg.ContextTokenBudget {
		return fmt.Errorf("%w: %d tokens, budget %d", ErrContextTooLarge, tokens, s.cfg.ContextTokenBudget)
	}
	return nil
}

func (s *Service) generate(ctx context.Context, req Request) (*Result, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.provider.Generate(ctx, req)
	s.metrics.RecordGeneration(string(req.Step), s.provider.Name(), time.Since(start))
	if err != nil {
		s.logger.Warn("generation provider call failed",
			"session_id", req.SessionID,
			"step", req.Step,
			"provider", s.provider.Name(),
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if result == nil || len(result.Payload) == 0 {
		return nil, fmt.Errorf("%w: provider returned no payload", ErrInvalidOutput)
	}
	return result, nil
}

// findMacroScene resolves a scene skeleton entry. An empty chainID searches
// every chain for the scene.
func findMacroScene(doc *session.Document, chainID, sceneID string) (*session.MacroChain, *session.MacroScene, error) {
	if sceneID == "" {
		return nil, nil, fmt.Errorf("%w: scene id is required", session.ErrInvalidInput)
	}

	if chainID != "" {
		chain := doc.Chain(chainID)
		if chain == nil {
			return nil, nil, fmt.Errorf("%w: chain %s", session.ErrChainNotFound, chainID)
		}
		for i := range chain.Scenes {
			if chain.Scenes[i].ID == sceneID {
				return chain, &chain.Scenes[i], nil
			}
		}
		return nil, nil, fmt.Errorf("%w: scene %s not in chain %s", session.ErrSceneNotFound, sceneID, chainID)
	}

	for _, chain := range doc.Blocks.Chains {
		for i := range chain.Scenes {
			if chain.Scenes[i].ID == sceneID {
				return chain, &chain.Scenes[i], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: scene %s", session.ErrSceneNotFound, sceneID)
}

func predecessorLocked(doc *session.Document, order int) bool {
	if order <= 1 {
		return true
	}
	for _, sc := range doc.Blocks.Scenes {
		if sc.Order == order-1 && sc.Status == session.SceneLocked {
			return true
		}
	}
	return false
}

func blockTypeFor(step StepKind) session.BlockType {
	switch step {
	case StepBackground:
		return session.BlockBackground
	case StepCharacters:
		return session.BlockCharacters
	default:
		return session.BlockMacroChain
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rpggio/loreweave/internal/store"
)

// Service owns every session operation. Each mutation runs a full
// load-mutate-save cycle against the document store under a per-session
// critical section, so concurrent callers never interleave their cycles and
// readers never observe partially cascaded state. Cross-session operations
// are fully independent.
type Service struct {
	docs   DocumentStore
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewService creates a session service backed by the given document store.
func NewService(docs DocumentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		docs:     docs,
		logger:   logger,
		sessions: make(map[string]*sync.Mutex),
	}
}

// GetContext returns the session's document, creating an empty one lazily if
// the session has never been written.
func (s *Service) GetContext(ctx context.Context, sessionID string) (*Document, error) {
	return s.read(ctx, sessionID)
}

// AppendBlock merges a payload into the session under the block type's merge
// policy and bumps the document version. Per-block version counters are not
// touched; content only becomes a versioned dependency when it is locked.
func (s *Service) AppendBlock(ctx context.Context, sessionID string, blockType BlockType, payload json.RawMessage) (*Document, error) {
	return s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		if err := applyBlock(doc, blockType, payload); err != nil {
			return err
		}
		doc.recordActivity(ActivityBlockAppended, string(blockType), "", now)
		return nil
	})
}

// SetBlockLock locks or unlocks a singleton block. Locking background or
// characters bumps the matching version counter.
func (s *Service) SetBlockLock(ctx context.Context, sessionID string, blockType BlockType, locked bool) (*Document, error) {
	return s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		if err := setBlockLock(doc, blockType, locked); err != nil {
			return err
		}
		kind := ActivityBlockLocked
		if !locked {
			kind = ActivityBlockUnlocked
		}
		doc.recordActivity(kind, string(blockType), "", now)
		return nil
	})
}

// LockChain freezes a chain's scene skeleton and bumps the macro snapshot
// counter. Locking cascades nothing.
func (s *Service) LockChain(ctx context.Context, sessionID, chainID string) (*ChainLockResult, error) {
	var result *ChainLockResult
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		chain, err := lockChain(doc, chainID)
		if err != nil {
			return err
		}
		doc.recordActivity(ActivityChainLocked, chainID, "", now)
		result = &ChainLockResult{Chain: chain}
		return nil
	})
	return result, err
}

// UnlockChain reopens a locked chain and marks every scene built on it
// needs_regen in the same save.
func (s *Service) UnlockChain(ctx context.Context, sessionID, chainID string) (*ChainLockResult, error) {
	var result *ChainLockResult
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		chain, affected, err := unlockChain(doc, chainID)
		if err != nil {
			return err
		}
		doc.recordActivity(ActivityChainUnlocked, chainID, fmt.Sprintf("%d scenes marked needs_regen", len(affected)), now)
		result = &ChainLockResult{Chain: chain, AffectedScenes: affected}
		return nil
	})
	return result, err
}

// LockScene freezes a scene detail, bumping its version counter. The scene's
// predecessor must already be locked.
func (s *Service) LockScene(ctx context.Context, sessionID, sceneID string) (*SceneLockResult, error) {
	var result *SceneLockResult
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		sc, err := lockScene(doc, sceneID)
		if err != nil {
			return err
		}
		doc.recordActivity(ActivitySceneLocked, sceneID, "", now)
		result = &SceneLockResult{Scene: sc}
		return nil
	})
	return result, err
}

// UnlockScene reopens a locked scene and marks every later scene needs_regen
// in the same save.
func (s *Service) UnlockScene(ctx context.Context, sessionID, sceneID string) (*SceneLockResult, error) {
	var result *SceneLockResult
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		sc, affected, err := unlockScene(doc, sceneID)
		if err != nil {
			return err
		}
		doc.recordActivity(ActivitySceneUnlocked, sceneID, fmt.Sprintf("%d scenes marked needs_regen", len(affected)), now)
		result = &SceneLockResult{Scene: sc, AffectedScenes: affected}
		return nil
	})
	return result, err
}

// BuildEffectiveContext assembles the merged locked upstream context a
// generation step at upToOrder may consume.
func (s *Service) BuildEffectiveContext(ctx context.Context, sessionID string, upToOrder int) (*EffectiveContext, error) {
	if upToOrder < 1 {
		return nil, fmt.Errorf("%w: up_to_order must be at least 1", ErrInvalidInput)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.docs.Load(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	case errors.Is(err, store.ErrCorrupt):
		s.logger.Warn("session document unreadable, starting fresh", "session_id", sessionID, "error", err)
		doc = NewDocument()
	default:
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return buildEffective(sessionID, doc, upToOrder), nil
}

// AnalyzeEdit previews the impact of replacing a scene's content without
// writing anything. The stored scene is the baseline.
func (s *Service) AnalyzeEdit(ctx context.Context, sessionID, sceneID string, newDetail *SceneDetail) (*Delta, error) {
	if newDetail == nil {
		return nil, fmt.Errorf("%w: new detail is required", ErrInvalidInput)
	}
	doc, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	old := doc.Scene(sceneID)
	if old == nil {
		return nil, fmt.Errorf("%w: scene %s", ErrSceneNotFound, sceneID)
	}
	delta := AnalyzeDelta(old, newDetail)
	delta.AffectedScenes = doc.affectedBy(delta, old.Order)
	return &delta, nil
}

// ApplyEdit replaces a scene's content, computes the delta against the stored
// version, and marks hard-affected downstream scenes needs_regen in the same
// save. Locked scenes reject edits.
func (s *Service) ApplyEdit(ctx context.Context, sessionID, sceneID string, newDetail *SceneDetail) (*EditResult, error) {
	if newDetail == nil {
		return nil, fmt.Errorf("%w: new detail is required", ErrInvalidInput)
	}
	var result *EditResult
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		old := doc.Scene(sceneID)
		if old == nil {
			return fmt.Errorf("%w: scene %s", ErrSceneNotFound, sceneID)
		}
		if old.Status == SceneLocked {
			return fmt.Errorf("%w: scene %s", ErrBlockLocked, sceneID)
		}

		delta := AnalyzeDelta(old, newDetail)
		delta.AffectedScenes = doc.affectedBy(delta, old.Order)

		updated := *newDetail
		updated.ID = sceneID
		updated.ChainID = old.ChainID
		updated.Order = old.Order
		updated.Status = SceneEdited
		updated.Version = doc.Versions.Scenes[sceneID]
		if updated.Uses == nil {
			updated.Uses = old.Uses
		}
		doc.Blocks.Scenes[sceneID] = &updated

		var marked []string
		if delta.Severity == SeverityHard {
			for _, aff := range delta.AffectedScenes {
				if sc := doc.Scene(aff.SceneID); sc != nil {
					sc.Status = SceneNeedsRegen
					marked = append(marked, aff.SceneID)
				}
			}
		}
		doc.recordActivity(ActivitySceneEdited, sceneID, delta.Summary, now)
		result = &EditResult{Scene: &updated, Delta: delta, MarkedScenes: marked}
		return nil
	})
	return result, err
}

// CheckStaleness compares a scene's recorded input versions against the
// session's current counters.
func (s *Service) CheckStaleness(ctx context.Context, sessionID, sceneID string) (*StalenessResult, error) {
	doc, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sc := doc.Scene(sceneID)
	if sc == nil {
		return nil, fmt.Errorf("%w: scene %s", ErrSceneNotFound, sceneID)
	}
	keys := staleKeys(sc.Uses, doc.CurrentVersions())
	return &StalenessResult{SceneID: sceneID, Stale: len(keys) > 0, StaleKeys: keys}, nil
}

// ClearContext resets the session's blocks, locks, and version counters. The
// document version keeps increasing and the activity trail survives, so the
// reset itself is observable.
func (s *Service) ClearContext(ctx context.Context, sessionID string) (*Document, error) {
	return s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		doc.Blocks = Blocks{}
		doc.Locks = make(map[BlockType]bool)
		doc.Versions = Versions{Scenes: make(map[string]int64)}
		doc.recordActivity(ActivityContextCleared, "", "", now)
		return nil
	})
}

// ListSessions returns a listing entry per persisted session, sorted by ID.
func (s *Service) ListSessions(ctx context.Context) ([]Info, error) {
	infos, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// RecentActivity returns the session's activity trail, oldest first.
func (s *Service) RecentActivity(ctx context.Context, sessionID string) ([]ActivityEntry, error) {
	doc, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]ActivityEntry, len(doc.Activity))
	copy(out, doc.Activity)
	return out, nil
}

// SaveGeneratedBlock persists a generation result for background, characters,
// or a macro chain. baseVersion is the document version the generation read
// its inputs at; any intervening write fails the save so stale output is
// never persisted. Generated chains always land as drafts.
func (s *Service) SaveGeneratedBlock(ctx context.Context, sessionID string, blockType BlockType, payload json.RawMessage, baseVersion int64) (*Document, error) {
	switch blockType {
	case BlockBackground, BlockCharacters, BlockMacroChain:
	default:
		return nil, fmt.Errorf("%w: %s is not a generated block", ErrInvalidBlockType, blockType)
	}
	return s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		if doc.Version != baseVersion {
			return fmt.Errorf("%w: session %s", ErrStaleWrite, sessionID)
		}
		if blockType == BlockMacroChain {
			chain, err := decodeChain(payload)
			if err != nil {
				return err
			}
			if err := mergeChain(doc, chain); err != nil {
				return err
			}
			chain.Status = ChainDraft
			doc.recordActivity(ActivityBlockAppended, string(blockType), "generated chain "+chain.ID, now)
			return nil
		}
		if err := applyBlock(doc, blockType, payload); err != nil {
			return err
		}
		doc.recordActivity(ActivityBlockAppended, string(blockType), "generated", now)
		return nil
	})
}

// SaveGeneratedScene persists a generated scene detail with a fresh uses
// snapshot of the upstream versions it consumed. The sequencing gate is
// re-checked under the session lock.
func (s *Service) SaveGeneratedScene(ctx context.Context, sessionID string, detail *SceneDetail, baseVersion int64) (*SceneDetail, error) {
	if detail == nil || detail.ID == "" {
		return nil, fmt.Errorf("%w: generated scene needs an id", ErrInvalidInput)
	}
	var saved *SceneDetail
	_, err := s.mutate(ctx, sessionID, func(doc *Document, now time.Time) error {
		if doc.Version != baseVersion {
			return fmt.Errorf("%w: session %s", ErrStaleWrite, sessionID)
		}
		if existing := doc.Scene(detail.ID); existing != nil && existing.Status == SceneLocked {
			return fmt.Errorf("%w: scene %s", ErrBlockLocked, detail.ID)
		}
		if err := requirePredecessorLocked(doc, detail.Order); err != nil {
			return err
		}

		stored := *detail
		stored.Status = SceneGenerated
		stored.Uses = buildEffective(sessionID, doc, stored.Order).Versions
		stored.Version = doc.Versions.Scenes[stored.ID]
		putScene(doc, &stored)
		doc.recordActivity(ActivitySceneGenerated, stored.ID, stored.Title, now)
		saved = &stored
		return nil
	})
	return saved, err
}

// sessionLock returns the mutex serializing operations for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	return lock
}

// read loads the session document under its critical section.
func (s *Service) read(ctx context.Context, sessionID string) (*Document, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadOrInit(ctx, sessionID)
}

// mutate runs one load-mutate-save cycle under the session's critical
// section. The document version bump and updatedAt stamp happen after fn
// succeeds; a failing fn leaves the persisted document untouched.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(doc *Document, now time.Time) error) (*Document, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.loadOrInit(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := fn(doc, now); err != nil {
		return nil, err
	}
	doc.touch(now)
	if err := s.docs.Save(ctx, sessionID, doc); err != nil {
		return nil, fmt.Errorf("saving session %s: %w", sessionID, err)
	}
	return doc, nil
}

// loadOrInit loads the session document, healing missing or unreadable ones
// into a fresh empty document. Missing is routine (sessions are created
// lazily); unreadable is logged as a warning before being replaced.
func (s *Service) loadOrInit(ctx context.Context, sessionID string) (*Document, error) {
	doc, err := s.docs.Load(ctx, sessionID)
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, store.ErrNotFound):
		return NewDocument(), nil
	case errors.Is(err, store.ErrCorrupt):
		s.logger.Warn("session document unreadable, starting fresh", "session_id", sessionID, "error", err)
		return NewDocument(), nil
	default:
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
}

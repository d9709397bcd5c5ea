package session

import "fmt"

// Lock state machine. These mutate the in-memory document only; persistence
// and the per-session critical section belong to the service. Unlock cascades
// forward (marking dependents needs_regen); lock never cascades, because
// declaring one block trustworthy says nothing about what was built on it.

// setBlockLock flips the flat lock flag for a singleton block type. Chains and
// scenes are addressed by entity ID and have their own transitions.
func setBlockLock(doc *Document, blockType BlockType, locked bool) error {
	switch blockType {
	case BlockBackground, BlockCharacters, BlockPlayerHooks, BlockWorldSeeds, BlockStylePrefs, BlockCustom:
	case BlockMacroChain, BlockSceneDetail:
		return fmt.Errorf("%w: %s locks are per entity", ErrInvalidBlockType, blockType)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlockType, blockType)
	}

	current := doc.Locks[blockType]
	if locked && current {
		return fmt.Errorf("%w: %s", ErrAlreadyLocked, blockType)
	}
	if !locked && !current {
		return fmt.Errorf("%w: %s", ErrNotLocked, blockType)
	}

	if doc.Locks == nil {
		doc.Locks = make(map[BlockType]bool)
	}
	doc.Locks[blockType] = locked
	if locked {
		switch blockType {
		case BlockBackground:
			doc.Versions.Background++
		case BlockCharacters:
			doc.Versions.Characters++
		}
	}
	return nil
}

// lockChain freezes the chain skeleton and bumps the macro snapshot counter.
func lockChain(doc *Document, chainID string) (*MacroChain, error) {
	chain := doc.Chain(chainID)
	if chain == nil {
		return nil, fmt.Errorf("%w: chain %s", ErrChainNotFound, chainID)
	}
	if chain.Status == ChainLocked {
		return nil, fmt.Errorf("%w: chain %s", ErrAlreadyLocked, chainID)
	}
	chain.Status = ChainLocked
	doc.Versions.MacroSnapshot++
	return chain, nil
}

// unlockChain reopens a locked chain and marks every scene detail built on it
// needs_regen, whatever the scene's own lock state. Returns affected scene IDs.
func unlockChain(doc *Document, chainID string) (*MacroChain, []string, error) {
	chain := doc.Chain(chainID)
	if chain == nil {
		return nil, nil, fmt.Errorf("%w: chain %s", ErrChainNotFound, chainID)
	}
	if chain.Status != ChainLocked {
		return nil, nil, fmt.Errorf("%w: chain %s", ErrNotLocked, chainID)
	}
	chain.Status = ChainEdited

	var affected []string
	for _, sc := range doc.scenesByOrder() {
		if sc.ChainID != chainID {
			continue
		}
		sc.Status = SceneNeedsRegen
		affected = append(affected, sc.ID)
	}
	return chain, affected, nil
}

// lockScene freezes a scene detail, bumping its version counter and making it
// the eligible predecessor for the next order. The scene must hold generated
// or edited content, and its own predecessor must already be locked.
func lockScene(doc *Document, sceneID string) (*SceneDetail, error) {
	sc := doc.Scene(sceneID)
	if sc == nil {
		return nil, fmt.Errorf("%w: scene %s", ErrSceneNotFound, sceneID)
	}
	switch sc.Status {
	case SceneGenerated, SceneEdited:
	case SceneLocked:
		return nil, fmt.Errorf("%w: scene %s", ErrAlreadyLocked, sceneID)
	default:
		return nil, fmt.Errorf("%w: scene %s is %s", ErrInvalidTransition, sceneID, sc.Status)
	}
	if err := requirePredecessorLocked(doc, sc.Order); err != nil {
		return nil, err
	}

	if doc.Versions.Scenes == nil {
		doc.Versions.Scenes = make(map[string]int64)
	}
	doc.Versions.Scenes[sceneID]++
	sc.Version = doc.Versions.Scenes[sceneID]
	sc.Status = SceneLocked
	return sc, nil
}

// unlockScene reopens a locked scene and marks every strictly later scene
// needs_regen. Returns affected scene IDs in order.
func unlockScene(doc *Document, sceneID string) (*SceneDetail, []string, error) {
	sc := doc.Scene(sceneID)
	if sc == nil {
		return nil, nil, fmt.Errorf("%w: scene %s", ErrSceneNotFound, sceneID)
	}
	if sc.Status != SceneLocked {
		return nil, nil, fmt.Errorf("%w: scene %s", ErrNotLocked, sceneID)
	}
	sc.Status = SceneEdited

	var affected []string
	for _, other := range doc.scenesByOrder() {
		if other.Order <= sc.Order {
			continue
		}
		other.Status = SceneNeedsRegen
		affected = append(affected, other.ID)
	}
	return sc, affected, nil
}

// requirePredecessorLocked enforces the sequencing gate: order N needs a
// locked scene at order N-1. Order 1 has no predecessor requirement.
func requirePredecessorLocked(doc *Document, order int) error {
	if order <= 1 {
		return nil
	}
	for _, sc := range doc.Blocks.Scenes {
		if sc.Order == order-1 && sc.Status == SceneLocked {
			return nil
		}
	}
	return fmt.Errorf("%w: scene order %d requires order %d locked", ErrPredecessorNotLocked, order, order-1)
}

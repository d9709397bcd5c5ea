package session

import "errors"

var (
	// ErrChainNotFound indicates the macro chain doesn't exist in the session.
	ErrChainNotFound = errors.New("macro chain not found")
	// ErrSceneNotFound indicates the scene detail doesn't exist in the session.
	ErrSceneNotFound = errors.New("scene detail not found")
	// ErrInvalidBlockType indicates a block type outside the closed set.
	ErrInvalidBlockType = errors.New("invalid block type")
	// ErrInvalidPayload indicates a block payload that fails schema validation.
	ErrInvalidPayload = errors.New("invalid block payload")
	// ErrAlreadyLocked indicates a lock transition on an already-locked block.
	ErrAlreadyLocked = errors.New("block already locked")
	// ErrNotLocked indicates an unlock transition on an unlocked block.
	ErrNotLocked = errors.New("block not locked")
	// ErrBlockLocked indicates a content mutation against a locked block.
	ErrBlockLocked = errors.New("block is locked")
	// ErrInvalidTransition indicates an illegal lock state transition.
	ErrInvalidTransition = errors.New("invalid lock state transition")
	// ErrPredecessorNotLocked indicates the previous scene is not locked yet.
	ErrPredecessorNotLocked = errors.New("predecessor scene not locked")
	// ErrSessionNotFound indicates the session has no persisted document.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleWrite indicates the session changed since the writer read it.
	ErrStaleWrite = errors.New("session changed since read")
	// ErrInvalidInput indicates invalid input for session operations.
	ErrInvalidInput = errors.New("invalid session input")
)

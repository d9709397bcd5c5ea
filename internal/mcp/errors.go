package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

// APIError is the error payload rendered into tool results.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      string `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// mapError maps domain errors to API error codes. Every tool error passes
// through here; unrecognized errors become INTERNAL_ERROR.
func mapError(err error) *APIError {
	wrap := func(code, message, hint string) *APIError {
		return &APIError{Code: code, Message: message, Details: err.Error(), RecoveryHint: hint}
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return wrap("NOT_FOUND", "session not found", "Check the session id, or call get_context to create it")
	case errors.Is(err, session.ErrChainNotFound):
		return wrap("NOT_FOUND", "chain not found", "Generate or append a macro_chain block first")
	case errors.Is(err, session.ErrSceneNotFound):
		return wrap("NOT_FOUND", "scene not found", "Generate the scene detail before locking or editing it")
	case errors.Is(err, session.ErrPredecessorNotLocked):
		return wrap("CONFLICT", "previous scene is not locked", "Lock the preceding scene first; scenes advance in order")
	case errors.Is(err, session.ErrAlreadyLocked):
		return wrap("CONFLICT", "already locked", "Unlock it first if you want to re-lock")
	case errors.Is(err, session.ErrNotLocked):
		return wrap("CONFLICT", "not locked", "Lock the block before this operation")
	case errors.Is(err, session.ErrBlockLocked):
		return wrap("CONFLICT", "block is locked", "Unlock it before writing")
	case errors.Is(err, session.ErrInvalidTransition):
		return wrap("CONFLICT", "invalid status transition", "Check the scene status; only generated or edited scenes can be locked")
	case errors.Is(err, session.ErrStaleWrite):
		return wrap("CONFLICT", "session changed since read", "Re-read the session and retry")
	case errors.Is(err, generation.ErrContextTooLarge):
		return wrap("CONFLICT", "effective context exceeds the token budget", "Raise the context token budget or trim upstream blocks")
	case errors.Is(err, session.ErrInvalidBlockType):
		return wrap("INVALID_BLOCK_TYPE", "unknown or unsupported block type", "Use one of: background, characters, macro_chain, scene_detail, player_hooks, world_seeds, style_prefs, custom")
	case errors.Is(err, session.ErrInvalidPayload):
		return wrap("SCHEMA_VALIDATION_FAILED", "payload failed validation", "Check the block's required fields")
	case errors.Is(err, generation.ErrInvalidOutput):
		return wrap("SCHEMA_VALIDATION_FAILED", "generated output failed validation", "Retry the generation step")
	case errors.Is(err, generation.ErrProviderFailure):
		return wrap("GENERATION_FAILED", "generation provider call failed", "Retry; the session document is unchanged")
	case errors.Is(err, generation.ErrUnknownStep):
		return wrap("INVALID_INPUT", "unknown generation step", "Use one of: background, characters, macro_chain, scene_detail")
	case errors.Is(err, session.ErrInvalidInput):
		return wrap("INVALID_INPUT", "invalid input", "")
	case errors.Is(err, store.ErrIO):
		return wrap("STORE_IO_FAILURE", "document store failed", "Retry; no partial write was committed")
	default:
		return wrap("INTERNAL_ERROR", "internal error", "")
	}
}

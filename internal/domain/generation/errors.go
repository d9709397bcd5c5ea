package generation

import "errors"

var (
	// ErrUnknownStep indicates an unrecognized step kind.
	ErrUnknownStep = errors.New("unknown generation step")
	// ErrProviderFailure indicates the provider call failed or timed out.
	ErrProviderFailure = errors.New("generation provider failure")
	// ErrInvalidOutput indicates the provider returned output that fails the
	// step's schema.
	ErrInvalidOutput = errors.New("generation output failed validation")
	// ErrContextTooLarge indicates the assembled inputs exceed the token budget.
	ErrContextTooLarge = errors.New("effective context exceeds token budget")
)

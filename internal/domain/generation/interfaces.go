package generation

import (
	"context"
	"encoding/json"

	"github.com/rpggio/loreweave/internal/domain/session"
)

// Provider produces structured content for one pipeline step. Implementations
// must respect ctx cancellation; the service bounds every call with the
// configured timeout.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ContextService provides the session document operations the pipeline needs.
type ContextService interface {
	GetContext(ctx context.Context, sessionID string) (*session.Document, error)
	BuildEffectiveContext(ctx context.Context, sessionID string, upToOrder int) (*session.EffectiveContext, error)
	SaveGeneratedBlock(ctx context.Context, sessionID string, blockType session.BlockType, payload json.RawMessage, baseVersion int64) (*session.Document, error)
	SaveGeneratedScene(ctx context.Context, sessionID string, detail *session.SceneDetail, baseVersion int64) (*session.SceneDetail, error)
}

// TokenCounter estimates the token cost of a prompt input.
type TokenCounter interface {
	Count(text string) int
}

package session

import "context"

// DocumentStore provides durable persistence for session documents. Load
// returns store.ErrNotFound for an absent session and store.ErrCorrupt for an
// unreadable document; the service turns both into a fresh empty document.
type DocumentStore interface {
	Load(ctx context.Context, sessionID string) (*Document, error)
	Save(ctx context.Context, sessionID string, doc *Document) error
	List(ctx context.Context) ([]Info, error)
}

// Package memstore provides an in-memory session document store for tests
// and development.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

// Store keeps session documents as marshaled JSON, so callers never share
// memory with stored state.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

func (s *Store) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	s.mu.RLock()
	raw, ok := s.docs[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, sessionID)
	}
	var doc session.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrCorrupt, sessionID, err)
	}
	return &doc, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, doc *session.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding session %s: %v", store.ErrIO, sessionID, err)
	}
	s.mu.Lock()
	s.docs[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]session.Info, 0, len(s.docs))
	for id, raw := range s.docs {
		var doc session.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			infos = append(infos, session.Info{ID: id})
			continue
		}
		infos = append(infos, session.Info{ID: id, DocumentVersion: doc.Version, UpdatedAt: doc.UpdatedAt})
	}
	return infos, nil
}

// Corrupt overwrites a session's stored bytes with undecodable data. Test
// helper for the self-healing load path.
func (s *Store) Corrupt(sessionID string) {
	s.mu.Lock()
	s.docs[sessionID] = []byte("{not json")
	s.mu.Unlock()
}

package metrics

import (
	"context"
	"time"

	"github.com/rpggio/loreweave/internal/domain/session"
)

// InstrumentedStore times document store operations. It wraps any
// session.DocumentStore and passes errors through untouched.
type InstrumentedStore struct {
	next    session.DocumentStore
	driver  string
	metrics *Metrics
}

// InstrumentStore decorates a document store with duration metrics. The
// driver label names the backing implementation (memory, file, sqlite, redis).
func InstrumentStore(next session.DocumentStore, driver string, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, driver: driver, metrics: m}
}

func (s *InstrumentedStore) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	start := time.Now()
	doc, err := s.next.Load(ctx, sessionID)
	s.metrics.RecordStoreOp(s.driver, "load", time.Since(start))
	return doc, err
}

func (s *InstrumentedStore) Save(ctx context.Context, sessionID string, doc *session.Document) error {
	start := time.Now()
	err := s.next.Save(ctx, sessionID, doc)
	s.metrics.RecordStoreOp(s.driver, "save", time.Since(start))
	return err
}

func (s *InstrumentedStore) List(ctx context.Context) ([]session.Info, error) {
	start := time.Now()
	infos, err := s.next.List(ctx)
	s.metrics.RecordStoreOp(s.driver, "list", time.Since(start))
	return infos, err
}

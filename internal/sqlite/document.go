package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

// DocumentStore persists session documents in SQLite, one row per session
// holding the full JSON document. The upsert replaces the whole row, so a
// save is a single atomic statement.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a document store over an open database.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM session_documents WHERE session_id = ?`,
		sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading session %s: %v", store.ErrIO, sessionID, err)
	}

	var doc session.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrCorrupt, sessionID, err)
	}
	return &doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, sessionID string, doc *session.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding session %s: %v", store.ErrIO, sessionID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_documents (session_id, document, document_version, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		     document = excluded.document,
		     document_version = excluded.document_version,
		     updated_at = excluded.updated_at`,
		sessionID, string(raw), doc.Version, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: saving session %s: %v", store.ErrIO, sessionID, err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context) ([]session.Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, document_version, updated_at FROM session_documents ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %v", store.ErrIO, err)
	}
	defer rows.Close()

	var infos []session.Info
	for rows.Next() {
		var info session.Info
		if err := rows.Scan(&info.ID, &info.DocumentVersion, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning session row: %v", store.ErrIO, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %v", store.ErrIO, err)
	}
	return infos, nil
}

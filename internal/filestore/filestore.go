// Package filestore persists one JSON document per session under a
// directory, committing each save with a write-to-temp-then-rename so a
// crash mid-write never corrupts the previously committed document.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

const docExt = ".json"

// Store is a directory-backed session document store.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", store.ErrIO, dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	raw, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading session %s: %v", store.ErrIO, sessionID, err)
	}
	var doc session.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrCorrupt, sessionID, err)
	}
	return &doc, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, doc *session.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding session %s: %v", store.ErrIO, sessionID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing session %s: %v", store.ErrIO, sessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing session %s: %v", store.ErrIO, sessionID, err)
	}
	if err := os.Rename(tmpName, s.path(sessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: committing session %s: %v", store.ErrIO, sessionID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", store.ErrIO, s.dir, err)
	}
	var infos []session.Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, docExt))
		if err != nil {
			continue
		}
		info := session.Info{ID: id}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			var doc session.Document
			if json.Unmarshal(raw, &doc) == nil {
				info.DocumentVersion = doc.Version
				info.UpdatedAt = doc.UpdatedAt
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// path maps a session ID to its document file. IDs are caller-supplied
// opaque strings, so they are escaped before use as a file name.
func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, url.PathEscape(sessionID)+docExt)
}

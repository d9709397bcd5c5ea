// Package redisstore persists session documents in Redis, one key per
// session with an optional TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/store"
)

const keyPrefix = "loreweave:session:"

// Store is a Redis-backed session document store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an existing client. A zero ttl means documents never expire.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Open connects to the Redis instance named by url and verifies the
// connection before returning a store.
func Open(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: connecting to redis: %v", store.ErrIO, err)
	}
	return New(client, ttl), nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*session.Document, error) {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading session %s: %v", store.ErrIO, sessionID, err)
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
	if err := s.client.Set(ctx, keyPrefix+sessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: saving session %s: %v", store.ErrIO, sessionID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Info, error) {
	var infos []session.Info
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		info := session.Info{ID: strings.TrimPrefix(key, keyPrefix)}
		if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
			var doc session.Document
			if json.Unmarshal(raw, &doc) == nil {
				info.DocumentVersion = doc.Version
				info.UpdatedAt = doc.UpdatedAt
			}
		}
		infos = append(infos, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %v", store.ErrIO, err)
	}
	return infos, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Package transport assembles the HTTP surface around the MCP server: bearer
// key resolution, the streamable MCP endpoint, health, and metrics.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// KeySet resolves bearer tokens against a fixed set of configured API keys.
// Only SHA-256 hashes are held after construction.
type KeySet struct {
	callers map[string]string
}

// NewKeySet hashes the configured keys. Empty keys are skipped; callers are
// named key-1, key-2, ... in configuration order.
func NewKeySet(keys []string) *KeySet {
	callers := make(map[string]string, len(keys))
	n := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		n++
		callers[hashKey(key)] = fmt.Sprintf("key-%d", n)
	}
	return &KeySet{callers: callers}
}

// ResolveKey returns the caller name for a presented token.
func (k *KeySet) ResolveKey(_ context.Context, token string) (string, error) {
	caller, ok := k.callers[hashKey(token)]
	if !ok {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return caller, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

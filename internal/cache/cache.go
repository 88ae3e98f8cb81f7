// Package cache memoizes computed views keyed by a hash of their inputs.
// Values are opaque bytes so any backend can hold them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cache stores byte values by key. Get reports a miss with ok=false and a
// nil error. All implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key hashes the canonical JSON encoding of parts. encoding/json sorts map
// keys, so equal inputs always produce the same key.
func Key(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("cache key part %d: %w", i, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Delete(context.Context, string) error              { return nil }

var _ Cache = Nop{}

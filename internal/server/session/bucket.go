// Package session stores the transient artifacts of the authorization flow:
// pending SSO handshakes, pending consents, issued authorization codes, and
// the userinfo cache. All four live in one TTL-bounded key/value table under
// disjoint namespaces.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sparkloc/oidcd/internal/server/db"
)

// Bucket is a typed view over the ephemeral store: a namespace prefix, a
// fixed TTL, and JSON-encoded values. Protocol artifacts are written once
// and consumed exactly once; the userinfo cache is the only bucket read
// without consuming.
type Bucket[T any] struct {
	store  *db.Store
	prefix string
	ttl    time.Duration
}

// NewBucket creates a bucket with the given namespace prefix and TTL.
func NewBucket[T any](store *db.Store, prefix string, ttl time.Duration) *Bucket[T] {
	return &Bucket[T]{store: store, prefix: prefix, ttl: ttl}
}

// Put stores v under key with the bucket's TTL.
func (b *Bucket[T]) Put(key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", b.prefix, err)
	}
	return b.store.PutEphemeral(b.prefix+key, raw, b.ttl)
}

// Consume atomically removes and returns the entry under key.
// Returns (nil, nil) when the entry is absent or expired; the two cases are
// indistinguishable on purpose.
func (b *Bucket[T]) Consume(key string) (*T, error) {
	raw, err := b.store.ConsumeEphemeral(b.prefix + key)
	if err != nil || raw == nil {
		return nil, err
	}
	return b.decode(raw)
}

// Get returns the entry under key without consuming it.
func (b *Bucket[T]) Get(key string) (*T, error) {
	raw, err := b.store.GetEphemeral(b.prefix + key)
	if err != nil || raw == nil {
		return nil, err
	}
	return b.decode(raw)
}

// Delete removes the entry under key if present.
func (b *Bucket[T]) Delete(key string) error {
	return b.store.DeleteEphemeral(b.prefix + key)
}

func (b *Bucket[T]) decode(raw []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("unmarshal %s entry: %w", b.prefix, err)
	}
	return v, nil
}

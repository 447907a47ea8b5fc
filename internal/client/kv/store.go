// Package kv is the client's local persistence surface: a string-keyed
// store of opaque values. The SQLite implementation keeps data across
// restarts; the in-memory one backs tests and throwaway sessions.
package kv

import (
	"context"
)

// Store is the get/set surface the rest of the client persists through.
// Get returns (nil, nil) for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Batcher is implemented by stores that can write several keys atomically.
type Batcher interface {
	SetMany(ctx context.Context, values map[string][]byte) error
}

// SetMany writes values atomically when s supports it and key by key
// otherwise.
func SetMany(ctx context.Context, s Store, values map[string][]byte) error {
	if b, ok := s.(Batcher); ok {
		return b.SetMany(ctx, values)
	}
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

package transport

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

const localPrefix = "tea-app-cloud-"

// LocalTransport keeps partitions in a kv.Store on the same device. It
// stands in for a remote when none is configured; several local profiles
// sharing one database still sync with each other.
type LocalTransport struct {
	kv kv.Store
}

func NewLocalTransport(s kv.Store) *LocalTransport {
	return &LocalTransport{kv: s}
}

func (t *LocalTransport) Upload(ctx context.Context, email string, snap models.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := t.kv.Set(ctx, localPrefix+PartitionKeyFor(email), data); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (t *LocalTransport) Download(ctx context.Context, email string) (models.Snapshot, error) {
	data, err := t.kv.Get(ctx, localPrefix+PartitionKeyFor(email))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if data == nil {
		return models.Snapshot{}, ErrAbsent
	}
	return models.ParseSnapshot(data)
}

func (t *LocalTransport) Ping(ctx context.Context) error {
	if _, err := t.kv.Get(ctx, localPrefix+"ping"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

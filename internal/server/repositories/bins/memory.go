package bins

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

// MemoryRepository keeps bins in process memory. Returned bins are copies.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.Bin
	byName map[string]string
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*models.Bin),
		byName: make(map[string]string),
		now:    time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, name string, content []byte) (*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return nil, common.ErrorAlreadyExists
	}
	now := r.now().UTC()
	b := &models.Bin{ID: uuid.NewString(), Name: name, Content: bytes.Clone(content), CreatedAt: now, UpdatedAt: now}
	r.byID[b.ID] = b
	r.byName[name] = b.ID
	return clone(b), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Bin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(b), nil
}

func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*models.Bin, error) {
	r.mu.RLock()
	id, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepository) Put(_ context.Context, id string, content []byte) (*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	b.Content = bytes.Clone(content)
	b.UpdatedAt = r.now().UTC()
	return clone(b), nil
}

func (r *MemoryRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func clone(b *models.Bin) *models.Bin {
	c := *b
	c.Content = bytes.Clone(b.Content)
	return &c
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/teadiary/internal/dbx"
	"github.com/dmitrijs2005/teadiary/internal/server/repositories/bins"
)

// InMemoryRepositoryManager serves the same process-local repositories
// regardless of the handle passed in. Used when no database is configured.
type InMemoryRepositoryManager struct {
	bins *bins.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{bins: bins.NewMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Bins(dbx.DBTX) bins.Repository {
	return m.bins
}

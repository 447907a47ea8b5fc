package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/teadiary/internal/dbx"
	"github.com/dmitrijs2005/teadiary/internal/server/repositories/bins"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Bins(db dbx.DBTX) bins.Repository
}

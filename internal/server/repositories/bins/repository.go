// Package bins stores document store partitions. Lookups of missing bins
// return common.ErrorNotFound; creating a second bin with a taken name
// returns common.ErrorAlreadyExists.
package bins

import (
	"context"

	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, name string, content []byte) (*models.Bin, error)
	Get(ctx context.Context, id string) (*models.Bin, error)
	GetByName(ctx context.Context, name string) (*models.Bin, error)
	Put(ctx context.Context, id string, content []byte) (*models.Bin, error)
	Count(ctx context.Context) (int, error)
}

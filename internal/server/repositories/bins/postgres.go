package bins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/dbx"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Create(ctx context.Context, name string, content []byte) (*models.Bin, error) {
	query :=
		`INSERT INTO bins (id, name, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING id, name, content, created_at, updated_at
		 `

	b, err := scanBin(r.db.QueryRowContext(ctx, query, uuid.NewString(), name, string(content), r.now().UTC()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Bin, error) {
	query :=
		`SELECT id, name, content, created_at, updated_at FROM bins
		 WHERE id = $1
		 `
	return r.one(ctx, query, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Bin, error) {
	query :=
		`SELECT id, name, content, created_at, updated_at FROM bins
		 WHERE name = $1
		 `
	return r.one(ctx, query, name)
}

// Put replaces the content of bin id in a single statement.
func (r *PostgresRepository) Put(ctx context.Context, id string, content []byte) (*models.Bin, error) {
	query :=
		`UPDATE bins SET content = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING id, name, content, created_at, updated_at
		 `
	return r.one(ctx, query, id, string(content), r.now().UTC())
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Bin, error) {
	b, err := scanBin(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func scanBin(row *sql.Row) (*models.Bin, error) {
	b := &models.Bin{}
	if err := row.Scan(&b.ID, &b.Name, &b.Content, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

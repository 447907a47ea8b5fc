package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/dbx"
	"github.com/dmitrijs2005/teadiary/internal/server/auth"
	"github.com/dmitrijs2005/teadiary/internal/server/config"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
	"github.com/dmitrijs2005/teadiary/internal/server/repositories/bins"
	"github.com/dmitrijs2005/teadiary/internal/server/repositories/repomanager"

	shared "github.com/dmitrijs2005/teadiary/internal/models"
)

// BinService is the document store shared by the HTTP and gRPC front ends.
// Every stored document must parse as a snapshot; anything else is rejected
// with common.ErrorValidation.
type BinService struct {
	db                          dbx.DBTX
	repomanager                 repomanager.RepositoryManager
	masterKey                   string
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewBinService(db dbx.DBTX, m repomanager.RepositoryManager, cfg *config.Config) *BinService {
	return &BinService{
		db:                          db,
		repomanager:                 m,
		masterKey:                   cfg.MasterKey,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

func (s *BinService) repo() bins.Repository {
	return s.repomanager.Bins(s.db)
}

// CheckMasterKey reports whether key is the configured master key.
func (s *BinService) CheckMasterKey(key string) bool {
	return auth.CheckMasterKey(key, s.masterKey)
}

// Authenticate exchanges the master key for an access token.
func (s *BinService) Authenticate(ctx context.Context, masterKey string) (string, error) {
	if !s.CheckMasterKey(masterKey) {
		return "", common.ErrorUnauthorized
	}
	token, err := auth.GenerateToken(uuid.NewString(), s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return token, nil
}

// CheckToken validates an access token and returns the client it was
// issued to.
func (s *BinService) CheckToken(token string) (string, error) {
	return auth.GetClientIDFromToken(token, s.jwtSecret)
}

func validate(content []byte) error {
	if _, err := shared.ParseSnapshot(content); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func (s *BinService) Create(ctx context.Context, name string, content []byte) (*models.Bin, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: bin name is required", common.ErrorValidation)
	}
	if err := validate(content); err != nil {
		return nil, err
	}
	return s.repo().Create(ctx, name, content)
}

func (s *BinService) Get(ctx context.Context, id string) (*models.Bin, error) {
	return s.repo().Get(ctx, id)
}

func (s *BinService) GetByName(ctx context.Context, name string) (*models.Bin, error) {
	return s.repo().GetByName(ctx, name)
}

func (s *BinService) Put(ctx context.Context, id string, content []byte) (*models.Bin, error) {
	if err := validate(content); err != nil {
		return nil, err
	}
	return s.repo().Put(ctx, id, content)
}

// Download returns the bin of the partition with the given key.
func (s *BinService) Download(ctx context.Context, partitionKey string) (*models.Bin, error) {
	return s.repo().GetByName(ctx, shared.BinName(partitionKey))
}

// Upload stores content as the bin of the partition with the given key,
// creating the bin on first use.
func (s *BinService) Upload(ctx context.Context, partitionKey string, content []byte) (*models.Bin, error) {
	if err := validate(content); err != nil {
		return nil, err
	}
	name := shared.BinName(partitionKey)
	repo := s.repo()

	for attempt := 0; attempt < 2; attempt++ {
		b, err := repo.GetByName(ctx, name)
		if err == nil {
			return repo.Put(ctx, b.ID, content)
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}

		b, err = repo.Create(ctx, name, content)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		// created concurrently; overwrite it on the next pass
	}
	return nil, fmt.Errorf("bin %s: %w", name, common.ErrorInternal)
}

func (s *BinService) Count(ctx context.Context) (int, error) {
	return s.repo().Count(ctx)
}

package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/cryptox"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/reconcile"
	"github.com/google/uuid"
)

const (
	SchemePlaintext = "plaintext"
	SchemeArgon2    = "argon2"
)

// CredentialVerifier turns a password into the stored credential and checks
// a candidate against it. Both implementations accept either stored form,
// so data written under one scheme stays usable under the other.
type CredentialVerifier interface {
	Hash(password string) string
	Verify(stored, password string) bool
}

// PlaintextVerifier stores the password itself, as the browser version of
// the diary does. It exists for compatibility only: a real deployment must
// use Argon2Verifier.
type PlaintextVerifier struct{}

func (PlaintextVerifier) Hash(password string) string { return password }

func (PlaintextVerifier) Verify(stored, password string) bool {
	return verify(stored, password)
}

// Argon2Verifier stores a salted argon2id hash.
type Argon2Verifier struct{}

func (Argon2Verifier) Hash(password string) string {
	return cryptox.HashCredential([]byte(password))
}

func (Argon2Verifier) Verify(stored, password string) bool {
	return verify(stored, password)
}

func verify(stored, password string) bool {
	if cryptox.IsHashed(stored) {
		ok, err := cryptox.VerifyCredential(stored, []byte(password))
		return err == nil && ok
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// NewCredentialVerifier returns the verifier for a configured scheme.
func NewCredentialVerifier(scheme string) (CredentialVerifier, error) {
	switch scheme {
	case "", SchemePlaintext:
		return PlaintextVerifier{}, nil
	case SchemeArgon2:
		return Argon2Verifier{}, nil
	default:
		return nil, fmt.Errorf("unknown credential scheme %q", scheme)
	}
}

// AuthService defines authentication operations for the UI.
//
// Contract:
//   - Register: create a local account unless the email is taken locally or
//     in the remote partition, sign it in and push it upstream.
//   - Login: match a local account first; otherwise look the account up in
//     the remote partition, merge that snapshot and sign in. Every failure
//     is ErrLoginFailed.
//   - Logout: forget the signed-in account.
//   - CurrentAccount: the signed-in account, if any.
type AuthService interface {
	Register(ctx context.Context, displayName, email, password string) (models.Account, error)
	Login(ctx context.Context, email, password string) (models.Account, error)
	Logout(ctx context.Context) error
	CurrentAccount(ctx context.Context) (models.Account, bool, error)
}

type authService struct {
	store     *store.Store
	transport transport.Transport
	sync      SyncService
	verifier  CredentialVerifier
	log       logging.Logger
	now       func() time.Time
}

func NewAuthService(st *store.Store, tr transport.Transport, sync SyncService, v CredentialVerifier, log logging.Logger) AuthService {
	return &authService{
		store:     st,
		transport: tr,
		sync:      sync,
		verifier:  v,
		log:       log.With("module", "auth"),
		now:       time.Now,
	}
}

func (a *authService) Register(ctx context.Context, displayName, email, password string) (models.Account, error) {
	email = models.NormalizeEmail(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" || password == "" {
		return models.Account{}, fmt.Errorf("%w: email and password are required", models.ErrInvalidEntity)
	}
	if displayName == "" {
		displayName = email
	}

	// a remote lookup failure does not block registration
	remote, err := a.transport.Download(ctx, email)
	switch {
	case err == nil:
		if _, taken := remote.FindAccount(email); taken {
			return models.Account{}, ErrDuplicateAccount
		}
	case errors.Is(err, transport.ErrAbsent):
	default:
		a.log.Warn(ctx, "remote duplicate check skipped", "error", err)
	}

	account := models.Account{
		ID:               uuid.NewString(),
		DisplayName:      displayName,
		Email:            email,
		CredentialSecret: a.verifier.Hash(password),
		CreatedAt:        a.now().UTC(),
	}

	_, err = a.store.Update(ctx, func(s models.Snapshot) (models.Snapshot, error) {
		if _, taken := s.FindAccount(email); taken {
			return s, ErrDuplicateAccount
		}
		s.Accounts = append(s.Accounts, account)
		s.GeneratedAt = a.now().UTC()
		return s, nil
	})
	if err != nil {
		return models.Account{}, err
	}

	if err := a.store.SetSession(ctx, account.ID); err != nil {
		return models.Account{}, err
	}
	a.log.Info(ctx, "account registered", "account", email)

	pushAfterWrite(ctx, a.sync, a.log, account)
	return account, nil
}

func (a *authService) Login(ctx context.Context, email, password string) (models.Account, error) {
	email = strings.TrimSpace(email)

	local, err := a.store.Load(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if acc, ok := local.FindAccount(email); ok && a.verifier.Verify(acc.CredentialSecret, password) {
		return a.signIn(ctx, acc)
	}

	remote, err := a.transport.Download(ctx, email)
	if err != nil {
		a.log.Info(ctx, "remote login lookup failed", "account", email, "error", err)
		return models.Account{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	acc, ok := remote.FindAccount(email)
	if !ok || !a.verifier.Verify(acc.CredentialSecret, password) {
		return models.Account{}, ErrLoginFailed
	}

	if _, err := a.store.Update(ctx, func(s models.Snapshot) (models.Snapshot, error) {
		return reconcile.Reconcile(s, remote), nil
	}); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := a.store.SetLastSync(ctx, acc.ID, a.now()); err != nil {
		a.log.Warn(ctx, "failed to record sync time", "error", err)
	}

	a.log.Info(ctx, "account restored from remote", "account", email)
	return a.signIn(ctx, acc)
}

func (a *authService) signIn(ctx context.Context, acc models.Account) (models.Account, error) {
	if err := a.store.SetSession(ctx, acc.ID); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return acc, nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.store.ClearSession(ctx)
}

func (a *authService) CurrentAccount(ctx context.Context) (models.Account, bool, error) {
	id, ok, err := a.store.Session(ctx)
	if err != nil || !ok {
		return models.Account{}, false, err
	}
	snap, err := a.store.Load(ctx)
	if err != nil {
		return models.Account{}, false, err
	}
	acc, ok := snap.AccountByID(id)
	return acc, ok, nil
}

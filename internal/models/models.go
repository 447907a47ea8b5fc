// Package models defines the entities exchanged between devices: accounts,
// tasting records, deletion markers and the snapshot that carries them.
//
// JSON field names match the payloads written by the browser version of the
// diary, so snapshots produced by either side can be read by the other.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrInvalidEntity     = errors.New("invalid entity")
)

// Account is a diary user. Email is the sync partition key.
//
// CredentialSecret holds either the password verbatim (the legacy scheme,
// kept for compatibility with existing data) or an argon2id hash produced by
// cryptox.HashCredential. Plaintext storage must not be used in a real
// deployment.
type Account struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"username"`
	Email            string    `json:"email"`
	CredentialSecret string    `json:"password"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasIdentity reports whether a carries the fields needed to merge it.
func (a Account) HasIdentity() bool {
	return a.ID != "" && a.Email != ""
}

// TastingRecord is one tasting note. UpdatedAt is the only field used to
// pick a winner when two devices edited the same record.
type TastingRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"userId"`
	Date          string    `json:"date"`
	TeaName       string    `json:"teaName"`
	TeaType       string    `json:"teaType"`
	Origin        string    `json:"origin"`
	BrewingMethod string    `json:"brewingMethod"`
	Temperature   int       `json:"temperature"`
	BrewingTime   string    `json:"brewingTime"`
	Rating        int       `json:"rating"`
	Appearance    string    `json:"appearance"`
	Aroma         string    `json:"aroma"`
	Taste         string    `json:"taste"`
	Aftertaste    string    `json:"aftertaste"`
	Notes         string    `json:"notes"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Images        []string  `json:"images,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasIdentity reports whether r carries the fields needed to merge it.
func (r TastingRecord) HasIdentity() bool {
	return r.ID != "" && r.OwnerID != ""
}

// Validate checks the form-level rules for a record about to be saved.
func (r TastingRecord) Validate() error {
	switch {
	case !r.HasIdentity():
		return fmt.Errorf("%w: record without id or owner", ErrInvalidEntity)
	case strings.TrimSpace(r.TeaName) == "":
		return fmt.Errorf("%w: tea name is required", ErrInvalidEntity)
	case r.Rating < 1 || r.Rating > 5:
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalidEntity, r.Rating)
	}
	return nil
}

// Tombstone marks a record as deleted. A record whose UpdatedAt is not after
// DeletedAt is dropped during reconciliation.
type Tombstone struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Buries reports whether t removes r.
func (t Tombstone) Buries(r TastingRecord) bool {
	return t.ID == r.ID && !r.UpdatedAt.After(t.DeletedAt)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

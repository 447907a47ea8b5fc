package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Snapshot is the unit exchanged with remote storage: every account, every
// record and every deletion marker known to one device.
type Snapshot struct {
	Accounts    []Account       `json:"users"`
	Records     []TastingRecord `json:"records"`
	Tombstones  []Tombstone     `json:"deleted,omitempty"`
	GeneratedAt time.Time       `json:"lastUpdated"`
}

// Empty returns a snapshot with non-nil, empty collections.
func Empty(now time.Time) Snapshot {
	return Snapshot{Accounts: []Account{}, Records: []TastingRecord{}, GeneratedAt: now}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Accounts:    slices.Clone(s.Accounts),
		Records:     slices.Clone(s.Records),
		Tombstones:  slices.Clone(s.Tombstones),
		GeneratedAt: s.GeneratedAt,
	}
	for i := range out.Records {
		out.Records[i].Images = slices.Clone(out.Records[i].Images)
	}
	return out
}

// AccountByEmail returns the account with exactly this email.
func (s Snapshot) AccountByEmail(email string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.Email == email {
			return a, true
		}
	}
	return Account{}, false
}

// FindAccount looks email up as typed first and then compares normalized
// forms, so accounts stored with mixed-case emails stay reachable.
func (s Snapshot) FindAccount(email string) (Account, bool) {
	if a, ok := s.AccountByEmail(strings.TrimSpace(email)); ok {
		return a, true
	}
	want := NormalizeEmail(email)
	for _, a := range s.Accounts {
		if NormalizeEmail(a.Email) == want {
			return a, true
		}
	}
	return Account{}, false
}

// AccountByID returns the account with this id.
func (s Snapshot) AccountByID(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Record returns the record with this id.
func (s Snapshot) Record(id string) (TastingRecord, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return TastingRecord{}, false
}

// RecordsOf returns the records owned by ownerID, in snapshot order.
func (s Snapshot) RecordsOf(ownerID string) []TastingRecord {
	out := make([]TastingRecord, 0)
	for _, r := range s.Records {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out
}

// ScopedTo returns the part of s that belongs to account a: the account
// itself, its records and its tombstones.
func (s Snapshot) ScopedTo(a Account) Snapshot {
	out := Snapshot{
		Accounts:    []Account{},
		Records:     s.RecordsOf(a.ID),
		GeneratedAt: s.GeneratedAt,
	}
	if acc, ok := s.AccountByID(a.ID); ok {
		out.Accounts = append(out.Accounts, acc)
	}
	for _, t := range s.Tombstones {
		if t.OwnerID == a.ID {
			out.Tombstones = append(out.Tombstones, t)
		}
	}
	return out
}

type wireSnapshot struct {
	Accounts    *[]Account       `json:"users"`
	Records     *[]TastingRecord `json:"records"`
	Tombstones  []Tombstone      `json:"deleted"`
	GeneratedAt *time.Time       `json:"lastUpdated"`
}

// ParseSnapshot decodes a serialized snapshot. Payloads without the users or
// records collections, or carrying an entity without its identity fields,
// are rejected with ErrMalformedSnapshot.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if w.Accounts == nil || w.Records == nil {
		return Snapshot{}, fmt.Errorf("%w: missing users or records", ErrMalformedSnapshot)
	}

	s := Snapshot{Accounts: *w.Accounts, Records: *w.Records, Tombstones: w.Tombstones}
	if w.GeneratedAt != nil {
		s.GeneratedAt = *w.GeneratedAt
	}

	for i, a := range s.Accounts {
		if !a.HasIdentity() {
			return Snapshot{}, fmt.Errorf("%w: user #%d has no id or email", ErrMalformedSnapshot, i)
		}
	}
	for i, r := range s.Records {
		if !r.HasIdentity() {
			return Snapshot{}, fmt.Errorf("%w: record #%d has no id or owner", ErrMalformedSnapshot, i)
		}
	}
	for i, t := range s.Tombstones {
		if t.ID == "" {
			return Snapshot{}, fmt.Errorf("%w: deletion marker #%d has no id", ErrMalformedSnapshot, i)
		}
	}
	return s, nil
}

// Marshal serializes s, writing empty collections as [] rather than null.
func (s Snapshot) Marshal() ([]byte, error) {
	if s.Accounts == nil {
		s.Accounts = []Account{}
	}
	if s.Records == nil {
		s.Records = []TastingRecord{}
	}
	return json.Marshal(s)
}

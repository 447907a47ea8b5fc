// Package export writes a user's diary out of the application and reads it
// back: JSON backups, base64 share links, an HTML report and CSV.
package export

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

const (
	BackupVersion = "1.0"
	shareFragment = "#sync="
)

var ErrUnrecognized = errors.New("unrecognized import data")

// Backup is the document produced by the backup and share-link features.
type Backup struct {
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Accounts  []models.Account       `json:"users"`
	Records   []models.TastingRecord `json:"records"`
	Deleted   []models.Tombstone     `json:"deleted,omitempty"`
}

// NewBackup captures snap at time now.
func NewBackup(snap models.Snapshot, now time.Time) Backup {
	b := Backup{
		Version:   BackupVersion,
		Timestamp: now.UTC(),
		Accounts:  snap.Accounts,
		Records:   snap.Records,
		Deleted:   snap.Tombstones,
	}
	if b.Accounts == nil {
		b.Accounts = []models.Account{}
	}
	if b.Records == nil {
		b.Records = []models.TastingRecord{}
	}
	return b
}

// Snapshot converts b back into a snapshot stamped with the backup time.
func (b Backup) Snapshot() models.Snapshot {
	return models.Snapshot{
		Accounts:    b.Accounts,
		Records:     b.Records,
		Tombstones:  b.Deleted,
		GeneratedAt: b.Timestamp,
	}
}

func WriteJSON(w io.Writer, b Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// ShareLink returns base with the backup appended as a #sync= fragment.
func ShareLink(base string, b Backup) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + shareFragment + base64.StdEncoding.EncodeToString(data), nil
}

// Parse reads import data: a backup or snapshot as JSON, the same encoded
// as base64, or a share link carrying a #sync= fragment.
func Parse(data []byte) (models.Snapshot, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return models.Snapshot{}, ErrUnrecognized
	}
	if i := strings.Index(text, shareFragment); i >= 0 {
		text = text[i+len(shareFragment):]
	}

	if !strings.HasPrefix(text, "{") {
		decoded, err := decodeBase64(text)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
		}
		text = strings.TrimSpace(string(decoded))
	}

	snap, err := models.ParseSnapshot([]byte(text))
	if err != nil {
		return models.Snapshot{}, err
	}

	if snap.GeneratedAt.IsZero() {
		var meta struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal([]byte(text), &meta) == nil {
			snap.GeneratedAt = meta.Timestamp
		}
	}
	return snap, nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Package transport moves serialized snapshots between the device and a
// remote partition keyed by the account email.
//
// Every implementation distinguishes three outcomes of Download: a snapshot,
// ErrAbsent when the partition holds nothing yet, and a failure. Failures
// wrap ErrUnavailable, ErrUnauthorized or models.ErrMalformedSnapshot.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

var (
	ErrAbsent       = errors.New("no remote snapshot")
	ErrUnavailable  = errors.New("remote unavailable")
	ErrUnauthorized = errors.New("remote rejected credentials")
	ErrTooLarge     = errors.New("remote document too large")
)

type Transport interface {
	Upload(ctx context.Context, email string, snap models.Snapshot) error
	Download(ctx context.Context, email string) (models.Snapshot, error)
}

// Pinger is implemented by transports that can probe the remote side.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PartitionKeyFor derives a stable partition key from an email. Case and
// surrounding blanks do not change the key.
func PartitionKeyFor(email string) string {
	sum := sha256.Sum256([]byte(models.NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:32]
}

// PartitionName is the human-readable partition name used by the document
// store, at most 32 characters.
func PartitionName(email string) string {
	return models.BinName(PartitionKeyFor(email))
}

// maxResponseSize bounds a downloaded document. It leaves room for the
// envelope around the largest document the server stores.
var maxResponseSize int64 = 64 << 20

// readLimited reads r fully, failing with ErrTooLarge rather than returning
// a truncated document.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if int64(len(data)) > maxResponseSize {
		return nil, fmt.Errorf("%w: %w: over %d bytes", ErrUnavailable, ErrTooLarge, maxResponseSize)
	}
	return data, nil
}

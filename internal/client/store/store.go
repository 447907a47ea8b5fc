// Package store maps the diary's collections onto well-known keys of a
// kv.Store. Key names are shared with the browser version so a data
// directory can be seeded from a browser export.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/client/notify"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/timex"
)

const (
	KeyAccounts   = "tea-app-users"
	KeyRecords    = "tea-app-records"
	KeyTombstones = "tea-app-deleted"
	KeyUpdated    = "tea-app-updated"
	KeySession    = "tea-app-auth"

	lastSyncPrefix  = "last-sync-"
	partitionPrefix = "tea-app-bin-"
)

// ErrCorrupt is returned when a stored collection does not decode.
var ErrCorrupt = errors.New("corrupt local data")

// Publisher receives every snapshot committed through Save.
type Publisher interface {
	Publish(ctx context.Context, m notify.Message) error
}

type Option func(*Store)

// WithPublisher announces each Save on p, tagged with origin.
func WithPublisher(p Publisher, origin string) Option {
	return func(s *Store) {
		s.pub = p
		s.origin = origin
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	// mu serializes read-modify-write cycles made through Update.
	mu sync.Mutex

	kv     kv.Store
	pub    Publisher
	origin string
	log    logging.Logger
	now    func() time.Time
}

func New(kvs kv.Store, opts ...Option) *Store {
	s := &Store{kv: kvs, log: logging.Nop{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// KV exposes the underlying surface for collaborators that keep their own
// keys next to the diary's, such as the local transport.
func (s *Store) KV() kv.Store {
	return s.kv
}

// Origin is the tag attached to messages this store publishes.
func (s *Store) Origin() string {
	return s.origin
}

// Load reads the full local snapshot. Missing collections load as empty.
func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	snap := models.Snapshot{
		Accounts:   []models.Account{},
		Records:    []models.TastingRecord{},
		Tombstones: []models.Tombstone{},
	}

	if err := s.getJSON(ctx, KeyAccounts, &snap.Accounts); err != nil {
		return models.Snapshot{}, err
	}
	if err := s.getJSON(ctx, KeyRecords, &snap.Records); err != nil {
		return models.Snapshot{}, err
	}
	if err := s.getJSON(ctx, KeyTombstones, &snap.Tombstones); err != nil {
		return models.Snapshot{}, err
	}

	raw, err := s.kv.Get(ctx, KeyUpdated)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load %s: %w", KeyUpdated, err)
	}
	if raw != nil {
		t, err := time.Parse(time.RFC3339Nano, string(raw))
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyUpdated, err)
		}
		snap.GeneratedAt = t
	}
	return snap, nil
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return nil
}

// Save commits snap and then announces it to peers. A failed announcement
// is logged only: the local write already happened.
func (s *Store) Save(ctx context.Context, snap models.Snapshot) error {
	if err := s.SaveQuiet(ctx, snap); err != nil {
		return err
	}
	if s.pub == nil {
		return nil
	}

	m := notify.Message{Origin: s.origin, Snapshot: snap.Clone(), SentAt: s.now()}
	if err := s.pub.Publish(ctx, m); err != nil {
		s.log.Warn(ctx, "failed to notify peers", "error", err)
	}
	return nil
}

// SaveQuiet commits snap without announcing it. Used when applying a change
// that came from a peer.
func (s *Store) SaveQuiet(ctx context.Context, snap models.Snapshot) error {
	values := make(map[string][]byte, 4)

	for key, v := range map[string]any{
		KeyAccounts:   nonNil(snap.Accounts),
		KeyRecords:    nonNil(snap.Records),
		KeyTombstones: nonNil(snap.Tombstones),
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		values[key] = data
	}

	generated := snap.GeneratedAt
	if generated.IsZero() {
		generated = s.now()
	}
	values[KeyUpdated] = []byte(generated.UTC().Format(time.RFC3339Nano))

	if err := kv.SetMany(ctx, s.kv, values); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Update loads the snapshot, applies fn and saves the result, holding a
// lock so concurrent updates through the same Store do not overwrite each
// other. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(models.Snapshot) (models.Snapshot, error)) (models.Snapshot, error) {
	return s.update(ctx, fn, s.Save)
}

// UpdateQuiet is Update without the peer announcement.
func (s *Store) UpdateQuiet(ctx context.Context, fn func(models.Snapshot) (models.Snapshot, error)) (models.Snapshot, error) {
	return s.update(ctx, fn, s.SaveQuiet)
}

func (s *Store) update(
	ctx context.Context,
	fn func(models.Snapshot) (models.Snapshot, error),
	save func(context.Context, models.Snapshot) error,
) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Load(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return models.Snapshot{}, err
	}
	if err := save(ctx, next); err != nil {
		return models.Snapshot{}, err
	}
	return next, nil
}

// LastSync returns when accountID last completed a sync. ok is false when
// it never did.
func (s *Store) LastSync(ctx context.Context, accountID string) (t time.Time, ok bool, err error) {
	raw, err := s.kv.Get(ctx, lastSyncPrefix+accountID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load last sync time: %w", err)
	}
	if raw == nil {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: last sync time: %w", ErrCorrupt, err)
	}
	return timex.UnixMilli(ms), true, nil
}

func (s *Store) SetLastSync(ctx context.Context, accountID string, t time.Time) error {
	v := strconv.FormatInt(t.UnixMilli(), 10)
	if err := s.kv.Set(ctx, lastSyncPrefix+accountID, []byte(v)); err != nil {
		return fmt.Errorf("failed to save last sync time: %w", err)
	}
	return nil
}

// PartitionID returns the remote partition id cached for email.
func (s *Store) PartitionID(ctx context.Context, email string) (string, bool, error) {
	raw, err := s.kv.Get(ctx, partitionPrefix+email)
	if err != nil {
		return "", false, fmt.Errorf("failed to load partition id: %w", err)
	}
	if len(raw) == 0 {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (s *Store) SetPartitionID(ctx context.Context, email, id string) error {
	if err := s.kv.Set(ctx, partitionPrefix+email, []byte(id)); err != nil {
		return fmt.Errorf("failed to save partition id: %w", err)
	}
	return nil
}

// PartitionBindings lists every cached email to partition id pair.
func (s *Store) PartitionBindings(ctx context.Context) (map[string]string, error) {
	all, err := s.kv.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local keys: %w", err)
	}
	out := make(map[string]string)
	for k, v := range all {
		if email, ok := strings.CutPrefix(k, partitionPrefix); ok {
			out[email] = string(v)
		}
	}
	return out, nil
}

// Session returns the id of the signed-in account.
func (s *Store) Session(ctx context.Context) (string, bool, error) {
	raw, err := s.kv.Get(ctx, KeySession)
	if err != nil {
		return "", false, fmt.Errorf("failed to load session: %w", err)
	}
	if len(raw) == 0 {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (s *Store) SetSession(ctx context.Context, accountID string) error {
	if err := s.kv.Set(ctx, KeySession, []byte(accountID)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeySession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

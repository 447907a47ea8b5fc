package services

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/google/uuid"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	// Search matches tea name, origin and notes, case-insensitively.
	Search  string
	TeaType string
}

// RecordService manages the signed-in account's tasting records. Every
// mutation commits locally first and is then pushed upstream on a best
// effort basis: a failed upload shows in the sync status and is not
// returned.
type RecordService interface {
	Add(ctx context.Context, account models.Account, r models.TastingRecord) (models.TastingRecord, error)
	Update(ctx context.Context, account models.Account, r models.TastingRecord) (models.TastingRecord, error)
	Delete(ctx context.Context, account models.Account, id string) error
	Get(ctx context.Context, account models.Account, id string) (models.TastingRecord, error)
	List(ctx context.Context, account models.Account, f Filter) ([]models.TastingRecord, error)
	TeaTypes(ctx context.Context, account models.Account) ([]string, error)
}

type recordService struct {
	store *store.Store
	sync  SyncService
	log   logging.Logger
	now   func() time.Time
}

func NewRecordService(st *store.Store, sync SyncService, log logging.Logger) RecordService {
	return &recordService{store: st, sync: sync, log: log.With("module", "records"), now: time.Now}
}

func (s *recordService) Add(ctx context.Context, account models.Account, r models.TastingRecord) (models.TastingRecord, error) {
	now := s.now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.OwnerID = account.ID
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := r.Validate(); err != nil {
		return models.TastingRecord{}, err
	}

	_, err := s.store.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		snap.Records = append(snap.Records, r)
		snap.GeneratedAt = now
		return snap, nil
	})
	if err != nil {
		return models.TastingRecord{}, err
	}

	s.push(ctx, account)
	return r, nil
}

func (s *recordService) Update(ctx context.Context, account models.Account, r models.TastingRecord) (models.TastingRecord, error) {
	var saved models.TastingRecord
	_, err := s.store.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		i := slices.IndexFunc(snap.Records, func(x models.TastingRecord) bool {
			return x.ID == r.ID && x.OwnerID == account.ID
		})
		if i < 0 {
			return snap, ErrRecordNotFound
		}

		prev := snap.Records[i]
		r.OwnerID = prev.OwnerID
		r.CreatedAt = prev.CreatedAt
		r.UpdatedAt = s.after(prev.UpdatedAt)
		if err := r.Validate(); err != nil {
			return snap, err
		}

		snap.Records[i] = r
		snap.GeneratedAt = r.UpdatedAt
		saved = r
		return snap, nil
	})
	if err != nil {
		return models.TastingRecord{}, err
	}

	s.push(ctx, account)
	return saved, nil
}

func (s *recordService) Delete(ctx context.Context, account models.Account, id string) error {
	_, err := s.store.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		i := slices.IndexFunc(snap.Records, func(x models.TastingRecord) bool {
			return x.ID == id && x.OwnerID == account.ID
		})
		if i < 0 {
			return snap, ErrRecordNotFound
		}

		t := models.Tombstone{ID: id, OwnerID: account.ID, DeletedAt: s.after(snap.Records[i].UpdatedAt)}
		snap.Records = slices.Delete(slices.Clone(snap.Records), i, i+1)
		snap.Tombstones = append(slices.DeleteFunc(slices.Clone(snap.Tombstones), func(x models.Tombstone) bool {
			return x.ID == id
		}), t)
		snap.GeneratedAt = t.DeletedAt
		return snap, nil
	})
	if err != nil {
		return err
	}

	s.push(ctx, account)
	return nil
}

// after returns the current time, or a moment after t if the clock is
// behind it, so UpdatedAt never goes backwards.
func (s *recordService) after(t time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(t) {
		return t.Add(time.Millisecond)
	}
	return now
}

func (s *recordService) push(ctx context.Context, account models.Account) {
	pushAfterWrite(ctx, s.sync, s.log, account)
}

// pushAfterWrite uploads a committed local change. A failure leaves the
// change local and is reported through the sync status and the log.
func pushAfterWrite(ctx context.Context, sync SyncService, log logging.Logger, account models.Account) {
	if err := sync.PushAfterWrite(ctx, account); err != nil {
		log.Warn(ctx, "change saved locally only", "account", account.Email, "error", err)
	}
}

func (s *recordService) Get(ctx context.Context, account models.Account, id string) (models.TastingRecord, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return models.TastingRecord{}, err
	}
	r, ok := snap.Record(id)
	if !ok || r.OwnerID != account.ID {
		return models.TastingRecord{}, ErrRecordNotFound
	}
	return r, nil
}

// List returns matching records, newest tasting date first.
func (s *recordService) List(ctx context.Context, account models.Account, f Filter) ([]models.TastingRecord, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := slices.DeleteFunc(snap.RecordsOf(account.ID), func(r models.TastingRecord) bool {
		if f.TeaType != "" && r.TeaType != f.TeaType {
			return true
		}
		if q == "" {
			return false
		}
		return !strings.Contains(strings.ToLower(r.TeaName), q) &&
			!strings.Contains(strings.ToLower(r.Origin), q) &&
			!strings.Contains(strings.ToLower(r.Notes), q)
	})

	slices.SortStableFunc(out, func(a, b models.TastingRecord) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// TeaTypes lists the distinct tea types the account has recorded, sorted.
func (s *recordService) TeaTypes(ctx context.Context, account models.Account) ([]string, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var types []string
	for _, r := range snap.RecordsOf(account.ID) {
		if r.TeaType != "" {
			types = append(types, r.TeaType)
		}
	}
	slices.Sort(types)
	return slices.Compact(types), nil
}

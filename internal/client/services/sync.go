// Package services contains the client's application services: sync
// orchestration, authentication and record management. The UI layer talks
// only to these services.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/notify"
	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/reconcile"
	"golang.org/x/sync/singleflight"
)

const DefaultSyncInterval = 30 * time.Minute

// SyncService keeps the local snapshot and the account's remote partition
// converging.
//
// Contract:
//   - SyncNow: download, reconcile, persist and (optionally) re-upload.
//     Local data is untouched when the download fails or the remote
//     snapshot is malformed, and nothing is uploaded then.
//   - PushAfterWrite: best-effort upload after a local mutation; no retry.
//   - NeedsSync: true when the account never synced or the interval elapsed.
//   - TriggerManualSync: SyncNow for the UI; the outcome is in the status.
//   - RunPeriodic: checks NeedsSync on a ticker until ctx is done.
//   - WatchPeers: merges snapshots announced by other local processes.
//   - ImportSnapshot: merges a snapshot from a file or share link.
//
// Operations for one account are serialized; concurrent SyncNow calls for
// the same account share a single run.
type SyncService interface {
	SyncNow(ctx context.Context, account models.Account) error
	PushAfterWrite(ctx context.Context, account models.Account) error
	NeedsSync(ctx context.Context, account models.Account) bool
	Status(ctx context.Context, account models.Account) SyncStatus
	Subscribe(fn func(SyncStatus)) (cancel func())
	TriggerManualSync(ctx context.Context, account models.Account) SyncStatus
	RunPeriodic(ctx context.Context, account models.Account)
	WatchPeers(ctx context.Context, onChange func(reconcile.Stats)) (cancel func(), err error)
	ImportSnapshot(ctx context.Context, snap models.Snapshot) (reconcile.Stats, error)
}

type SyncOptions struct {
	// Interval after which an account needs syncing again.
	Interval time.Duration
	// CheckEvery is how often RunPeriodic evaluates NeedsSync.
	CheckEvery time.Duration
	// ReuploadAfterSync pushes the reconciled result back so the remote
	// converges too.
	ReuploadAfterSync bool
	Now               func() time.Time
}

type syncService struct {
	store     *store.Store
	transport transport.Transport
	peers     notify.Channel
	log       logging.Logger
	opts      SyncOptions

	locks  *keyedMutex
	flight singleflight.Group

	mu        sync.Mutex
	states    map[string]SyncStatus
	observers map[int]func(SyncStatus)
	nextObs   int
}

// NewSyncService wires a SyncService. peers may be nil.
func NewSyncService(st *store.Store, tr transport.Transport, peers notify.Channel, log logging.Logger, opts SyncOptions) SyncService {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSyncInterval
	}
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = min(opts.Interval, time.Minute)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &syncService{
		store:     st,
		transport: tr,
		peers:     peers,
		log:       log.With("module", "sync"),
		opts:      opts,
		locks:     newKeyedMutex(),
		states:    make(map[string]SyncStatus),
		observers: make(map[int]func(SyncStatus)),
	}
}

func (s *syncService) SyncNow(ctx context.Context, account models.Account) error {
	_, err, _ := s.flight.Do(account.ID, func() (interface{}, error) {
		unlock := s.locks.Lock(account.ID)
		defer unlock()
		return nil, s.syncLocked(ctx, account)
	})
	return err
}

func (s *syncService) syncLocked(ctx context.Context, account models.Account) error {
	s.setState(account.ID, StateSyncing, nil)

	// an absent remote is seeded with the local view; an unusable one is
	// left alone so records only it holds are not overwritten
	push := s.opts.ReuploadAfterSync
	remote, err := s.transport.Download(ctx, account.Email)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrAbsent):
		s.log.Info(ctx, "no remote snapshot yet, pushing local", "account", account.Email)
		remote, push = models.Snapshot{}, true
	case errors.Is(err, models.ErrMalformedSnapshot):
		s.log.Warn(ctx, "remote snapshot unusable, keeping local as is", "account", account.Email, "error", err)
		s.setState(account.ID, StateError, err)
		return fmt.Errorf("download: %w", err)
	default:
		s.log.Error(ctx, "download failed", "account", account.Email, "error", err)
		s.setState(account.ID, StateError, err)
		return fmt.Errorf("download: %w", err)
	}

	var stats reconcile.Stats
	merged, err := s.store.Update(ctx, func(local models.Snapshot) (models.Snapshot, error) {
		out := reconcile.Reconcile(local, remote)
		stats = reconcile.Diff(local, out)
		return out, nil
	})
	if err != nil {
		s.log.Error(ctx, "failed to persist merged snapshot", "account", account.Email, "error", err)
		s.setState(account.ID, StateError, err)
		return fmt.Errorf("persist: %w", err)
	}
	s.log.Info(ctx, "snapshot reconciled", "account", account.Email,
		"records_added", stats.RecordsAdded, "records_replaced", stats.RecordsReplaced,
		"records_removed", stats.RecordsRemoved, "accounts_added", stats.AccountsAdded)

	if push {
		if err := s.transport.Upload(ctx, account.Email, merged.ScopedTo(account)); err != nil {
			s.log.Error(ctx, "re-upload failed", "account", account.Email, "error", err)
			s.setState(account.ID, StateError, err)
			return fmt.Errorf("upload: %w", err)
		}
	}

	if err := s.store.SetLastSync(ctx, account.ID, s.opts.Now()); err != nil {
		s.log.Warn(ctx, "failed to record sync time", "error", err)
	}
	s.setState(account.ID, StateSuccess, nil)
	return nil
}

func (s *syncService) PushAfterWrite(ctx context.Context, account models.Account) error {
	unlock := s.locks.Lock(account.ID)
	defer unlock()

	s.setState(account.ID, StateSyncing, nil)

	snap, err := s.store.Load(ctx)
	if err != nil {
		s.setState(account.ID, StateError, err)
		return err
	}
	if err := s.transport.Upload(ctx, account.Email, snap.ScopedTo(account)); err != nil {
		s.log.Warn(ctx, "write-through upload failed", "account", account.Email, "error", err)
		s.setState(account.ID, StateError, err)
		return fmt.Errorf("upload: %w", err)
	}
	s.setState(account.ID, StateSuccess, nil)
	return nil
}

func (s *syncService) NeedsSync(ctx context.Context, account models.Account) bool {
	last, ok, err := s.store.LastSync(ctx, account.ID)
	if err != nil {
		s.log.Warn(ctx, "failed to read last sync time", "error", err)
		return true
	}
	if !ok {
		return true
	}
	return s.opts.Now().Sub(last) > s.opts.Interval
}

func (s *syncService) Status(ctx context.Context, account models.Account) SyncStatus {
	s.mu.Lock()
	st, ok := s.states[account.ID]
	s.mu.Unlock()
	if !ok {
		st = SyncStatus{AccountID: account.ID, State: StateIdle}
	}

	if last, ok, err := s.store.LastSync(ctx, account.ID); err == nil && ok {
		st.LastSyncTime = last
	}
	st.NeedsSync = s.NeedsSync(ctx, account)
	return st
}

func (s *syncService) Subscribe(fn func(SyncStatus)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *syncService) setState(accountID string, next SyncState, cause error) {
	s.mu.Lock()
	cur, ok := s.states[accountID]
	if !ok {
		cur = SyncStatus{AccountID: accountID, State: StateIdle}
	}
	if !cur.State.CanTransition(next) {
		s.mu.Unlock()
		s.log.Warn(context.Background(), "ignored sync state change", "from", cur.State, "to", next)
		return
	}
	cur.State = next
	if cause != nil {
		cur.LastError = cause.Error()
	} else if next == StateSuccess {
		cur.LastError = ""
	}
	s.states[accountID] = cur

	observers := make([]func(SyncStatus), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(cur)
	}
}

func (s *syncService) TriggerManualSync(ctx context.Context, account models.Account) SyncStatus {
	if err := s.SyncNow(ctx, account); err != nil {
		s.log.Warn(ctx, "manual sync failed", "account", account.Email, "error", err)
	}
	return s.Status(ctx, account)
}

func (s *syncService) RunPeriodic(ctx context.Context, account models.Account) {
	ticker := time.NewTicker(s.opts.CheckEvery)
	defer ticker.Stop()

	for {
		if s.NeedsSync(ctx, account) {
			s.TriggerManualSync(ctx, account)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *syncService) WatchPeers(ctx context.Context, onChange func(reconcile.Stats)) (func(), error) {
	if s.peers == nil {
		return func() {}, nil
	}
	own := s.store.Origin()

	return s.peers.Subscribe(ctx, func(ctx context.Context, m notify.Message) {
		if m.Origin == own {
			return
		}
		var stats reconcile.Stats
		_, err := s.store.UpdateQuiet(ctx, func(local models.Snapshot) (models.Snapshot, error) {
			out := reconcile.Reconcile(local, m.Snapshot)
			stats = reconcile.Diff(local, out)
			return out, nil
		})
		if err != nil {
			s.log.Warn(ctx, "failed to apply peer change", "origin", m.Origin, "error", err)
			return
		}
		s.log.Debug(ctx, "peer change applied", "origin", m.Origin, "changed", stats.Changed())
		if onChange != nil && stats.Changed() {
			onChange(stats)
		}
	})
}

func (s *syncService) ImportSnapshot(ctx context.Context, snap models.Snapshot) (reconcile.Stats, error) {
	var stats reconcile.Stats
	_, err := s.store.Update(ctx, func(local models.Snapshot) (models.Snapshot, error) {
		out := reconcile.Reconcile(local, snap)
		stats = reconcile.Diff(local, out)
		return out, nil
	})
	if err != nil {
		return reconcile.Stats{}, fmt.Errorf("import: %w", err)
	}
	return stats, nil
}

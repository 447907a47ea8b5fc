package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/client/notify"
	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncState_CanTransition(t *testing.T) {
	cases := []struct {
		from, to SyncState
		want     bool
	}{
		{StateIdle, StateSyncing, true},
		{StateIdle, StateSuccess, false},
		{StateIdle, StateError, false},
		{StateSyncing, StateSuccess, true},
		{StateSyncing, StateError, true},
		{StateSyncing, StateIdle, false},
		{StateSyncing, StateSyncing, false},
		{StateSuccess, StateIdle, true},
		{StateSuccess, StateSyncing, true},
		{StateError, StateIdle, true},
		{StateError, StateSyncing, true},
		{StateError, StateSuccess, false},
		{SyncState("bogus"), StateSyncing, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransition(tc.to))
		})
	}
}

func TestSyncNow_AbsentRemotePushesLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{
		Accounts: []models.Account{ann(), bob()},
		Records: []models.TastingRecord{
			record("r1", "u-ann", "Sencha", t1),
			record("r2", "u-bob", "Assam", t1),
		},
	})

	require.NoError(t, f.sync.SyncNow(ctx, ann()))

	up, ok := f.remote.get("ann@x.com")
	require.True(t, ok)
	require.Len(t, up.Accounts, 1)
	assert.Equal(t, "ann@x.com", up.Accounts[0].Email)
	require.Len(t, up.Records, 1, "only the account's own records are uploaded")
	assert.Equal(t, "r1", up.Records[0].ID)

	st := f.sync.Status(ctx, ann())
	assert.Equal(t, StateSuccess, st.State)
	assert.True(t, st.LastSyncTime.Equal(t3))
	assert.False(t, st.NeedsSync)
}

func TestSyncNow_MergesNewerRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
	})
	f.remote.put("ann@x.com", models.Snapshot{
		Accounts: []models.Account{ann()},
		Records: []models.TastingRecord{
			record("1", "u-ann", "Longjing v2", t2),
			record("2", "u-ann", "Dancong", t2),
		},
	})

	require.NoError(t, f.sync.SyncNow(ctx, ann()))

	local := f.load()
	require.Len(t, local.Records, 2)
	assert.Equal(t, "Longjing v2", local.Records[0].TeaName)
	assert.Equal(t, "Dancong", local.Records[1].TeaName)

	up, _ := f.remote.get("ann@x.com")
	assert.Len(t, up.Records, 2)
}

func TestSyncNow_DownloadFailureLeavesLocalUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	before := models.Snapshot{
		Accounts:    []models.Account{ann()},
		Records:     []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
		GeneratedAt: t1,
	}
	f.seed(before)
	f.remote.setErrors(fmt.Errorf("%w: connection refused", transport.ErrUnavailable), nil)

	err := f.sync.SyncNow(ctx, ann())
	require.ErrorIs(t, err, transport.ErrUnavailable)

	assert.Equal(t, before.Records, f.load().Records)
	st := f.sync.Status(ctx, ann())
	assert.Equal(t, StateError, st.State)
	assert.Contains(t, st.LastError, "connection refused")
	assert.True(t, st.NeedsSync)

	_, uploads := f.remote.counts()
	assert.Zero(t, uploads)
}

func TestSyncNow_MalformedRemoteKeepsLocalWithoutUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
	})
	bad := []byte(`{"records":[]}`)
	f.remote.mu.Lock()
	f.remote.remote["ann@x.com"] = bad
	f.remote.mu.Unlock()

	err := f.sync.SyncNow(ctx, ann())
	assert.ErrorIs(t, err, models.ErrMalformedSnapshot)

	_, uploads := f.remote.counts()
	assert.Zero(t, uploads)
	f.remote.mu.Lock()
	assert.Equal(t, bad, f.remote.remote["ann@x.com"])
	f.remote.mu.Unlock()

	assert.Len(t, f.load().Records, 1)
	assert.Equal(t, StateError, f.sync.Status(ctx, ann()).State)
}

func TestSyncNow_OversizedRemoteIsAFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
	})
	f.remote.setErrors(fmt.Errorf("%w: %w", transport.ErrUnavailable, transport.ErrTooLarge), nil)

	err := f.sync.SyncNow(ctx, ann())
	assert.ErrorIs(t, err, transport.ErrTooLarge)

	_, uploads := f.remote.counts()
	assert.Zero(t, uploads)
	assert.Len(t, f.load().Records, 1)
}

func TestSyncNow_UploadFailureAfterMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{Accounts: []models.Account{ann()}})
	f.remote.put("ann@x.com", models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
	})
	f.remote.setErrors(nil, transport.ErrUnavailable)

	err := f.sync.SyncNow(ctx, ann())
	require.ErrorIs(t, err, transport.ErrUnavailable)

	// the merge itself is kept
	assert.Len(t, f.load().Records, 1)
	assert.Equal(t, StateError, f.sync.Status(ctx, ann()).State)
}

func TestSyncNow_WithoutReupload(t *testing.T) {
	ctx := context.Background()
	st := store.New(kv.NewMemoryStore())
	tr := newFakeTransport()
	tr.put("ann@x.com", models.Snapshot{Accounts: []models.Account{ann()}})
	ss := NewSyncService(st, tr, nil, logging.Nop{}, SyncOptions{})

	require.NoError(t, ss.SyncNow(ctx, ann()))

	downloads, uploads := tr.counts()
	assert.Equal(t, 1, downloads)
	assert.Zero(t, uploads)
}

func TestSyncNow_ConcurrentCallsShareOneRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{Accounts: []models.Account{ann()}})
	f.remote.entered = make(chan struct{}, 1)
	f.remote.release = make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- f.sync.SyncNow(ctx, ann())
	}()
	<-f.remote.entered

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.sync.SyncNow(ctx, ann())
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(f.remote.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	downloads, _ := f.remote.counts()
	assert.Equal(t, 1, downloads)
}

func TestSyncService_ObserversSeeTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{Accounts: []models.Account{ann()}})

	var mu sync.Mutex
	var seen []SyncState
	cancel := f.sync.Subscribe(func(s SyncStatus) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})

	require.NoError(t, f.sync.SyncNow(ctx, ann()))
	f.remote.setErrors(transport.ErrUnavailable, nil)
	require.Error(t, f.sync.SyncNow(ctx, ann()))
	f.remote.setErrors(nil, nil)
	require.NoError(t, f.sync.SyncNow(ctx, ann()))

	cancel()
	require.NoError(t, f.sync.SyncNow(ctx, ann()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []SyncState{
		StateSyncing, StateSuccess,
		StateSyncing, StateError,
		StateSyncing, StateSuccess,
	}, seen)
}

func TestSyncService_NeedsSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{Accounts: []models.Account{ann()}})

	assert.True(t, f.sync.NeedsSync(ctx, ann()), "never synced")
	assert.Equal(t, StateIdle, f.sync.Status(ctx, ann()).State)

	require.NoError(t, f.sync.SyncNow(ctx, ann()))
	assert.False(t, f.sync.NeedsSync(ctx, ann()))

	f.clock.Advance(DefaultSyncInterval)
	assert.False(t, f.sync.NeedsSync(ctx, ann()), "exactly one interval is not more than the interval")

	f.clock.Advance(time.Second)
	assert.True(t, f.sync.NeedsSync(ctx, ann()))
}

func TestSyncService_TriggerManualSyncNeverFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{Accounts: []models.Account{ann()}})
	f.remote.setErrors(errors.New("boom"), errors.New("boom"))

	st := f.sync.TriggerManualSync(ctx, ann())
	assert.Equal(t, StateError, st.State)
	assert.Equal(t, "u-ann", st.AccountID)
	assert.True(t, st.LastSyncTime.IsZero())
}

func TestSyncService_RunPeriodicStopsOnCancel(t *testing.T) {
	st := store.New(kv.NewMemoryStore())
	tr := newFakeTransport()
	ss := NewSyncService(st, tr, nil, logging.Nop{}, SyncOptions{
		Interval:   time.Millisecond,
		CheckEvery: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ss.RunPeriodic(ctx, ann())
		close(done)
	}()

	require.Eventually(t, func() bool {
		downloads, _ := tr.counts()
		return downloads >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not stop after cancel")
	}
}

func TestSyncService_RunPeriodicSkipsFreshAccount(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	st := store.New(kv.NewMemoryStore())
	require.NoError(t, st.SetLastSync(ctx, "u-ann", time.Now()))
	tr := newFakeTransport()
	ss := NewSyncService(st, tr, nil, logging.Nop{}, SyncOptions{CheckEvery: 5 * time.Millisecond})

	ss.RunPeriodic(ctx, ann())

	downloads, _ := tr.counts()
	assert.Zero(t, downloads)
}

func TestSyncService_WatchPeers(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus(8)
	defer bus.Close()

	// two processes on one device: separate stores, shared channel
	writer := store.New(kv.NewMemoryStore(), store.WithPublisher(bus, "proc-a"))
	reader := store.New(kv.NewMemoryStore(), store.WithPublisher(bus, "proc-b"))
	ss := NewSyncService(reader, newFakeTransport(), bus, logging.Nop{}, SyncOptions{})

	changes := make(chan reconcile.Stats, 4)
	cancel, err := ss.WatchPeers(ctx, func(s reconcile.Stats) { changes <- s })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, writer.Save(ctx, models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Gyokuro", t1)},
	}))

	select {
	case s := <-changes:
		assert.Equal(t, 1, s.RecordsAdded)
	case <-time.After(2 * time.Second):
		t.Fatal("peer change was not applied")
	}
	got, err := reader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Gyokuro", got.Records[0].TeaName)

	// the reader's own announcement is ignored
	require.NoError(t, reader.Save(ctx, got))
	select {
	case s := <-changes:
		t.Fatalf("own change echoed back: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSyncService_WatchPeersWithoutChannel(t *testing.T) {
	f := newFixture()
	cancel, err := f.sync.WatchPeers(context.Background(), nil)
	require.NoError(t, err)
	cancel()
}

func TestSyncService_ImportSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "Longjing", t1)},
	})

	stats, err := f.sync.ImportSnapshot(ctx, models.Snapshot{
		Accounts: []models.Account{bob()},
		Records: []models.TastingRecord{
			record("1", "u-ann", "Longjing v2", t2),
			record("2", "u-bob", "Assam", t1),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Stats{AccountsAdded: 1, RecordsAdded: 1, RecordsReplaced: 1}, stats)
	assert.Len(t, f.load().Accounts, 2)
}

// Scenario D: merging two remotes in either order gives the same winners.
func TestSyncService_ImportOrderIndependent(t *testing.T) {
	ctx := context.Background()
	base := models.Snapshot{
		Accounts: []models.Account{ann()},
		Records:  []models.TastingRecord{record("1", "u-ann", "local", t1)},
	}
	r1 := models.Snapshot{Records: []models.TastingRecord{record("1", "u-ann", "remote-1", t2), record("2", "u-ann", "only-1", t1)}}
	r2 := models.Snapshot{Records: []models.TastingRecord{record("1", "u-ann", "remote-2", t3), record("3", "u-ann", "only-2", t1)}}

	winners := func(first, second models.Snapshot) map[string]string {
		f := newFixture()
		f.seed(base)
		_, err := f.sync.ImportSnapshot(ctx, first)
		require.NoError(t, err)
		_, err = f.sync.ImportSnapshot(ctx, second)
		require.NoError(t, err)

		out := map[string]string{}
		for _, r := range f.load().Records {
			out[r.ID] = r.TeaName
		}
		return out
	}

	ab := winners(r1, r2)
	assert.Equal(t, ab, winners(r2, r1))
	assert.Equal(t, map[string]string{"1": "remote-2", "2": "only-1", "3": "only-2"}, ab)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("acc")
			mu.Lock()
			inside++
			maxInside = max(maxInside, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}

	// a different key is never blocked by "acc"
	unlock := k.Lock("other")
	unlock()

	wg.Wait()
	assert.Equal(t, 1, maxInside)
	assert.Zero(t, k.size())
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

var (
	t1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
)

// fakeTransport keeps partitions in a map keyed by normalized email.
type fakeTransport struct {
	mu          sync.Mutex
	remote      map[string][]byte
	downloadErr error
	uploadErr   error
	downloads   int
	uploads     int

	// entered and release let a test hold Download open
	entered chan struct{}
	release chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{remote: map[string][]byte{}}
}

func (f *fakeTransport) Upload(_ context.Context, email string, snap models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	f.remote[models.NormalizeEmail(email)] = data
	return nil
}

func (f *fakeTransport) Download(_ context.Context, email string) (models.Snapshot, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return models.Snapshot{}, f.downloadErr
	}
	data, ok := f.remote[models.NormalizeEmail(email)]
	if !ok {
		return models.Snapshot{}, transport.ErrAbsent
	}
	return models.ParseSnapshot(data)
}

func (f *fakeTransport) put(email string, snap models.Snapshot) {
	data, err := snap.Marshal()
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.remote[models.NormalizeEmail(email)] = data
	f.mu.Unlock()
}

func (f *fakeTransport) get(email string) (models.Snapshot, bool) {
	f.mu.Lock()
	data, ok := f.remote[models.NormalizeEmail(email)]
	f.mu.Unlock()
	if !ok {
		return models.Snapshot{}, false
	}
	snap, err := models.ParseSnapshot(data)
	if err != nil {
		return models.Snapshot{}, false
	}
	return snap, true
}

func (f *fakeTransport) counts() (downloads, uploads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, f.uploads
}

func (f *fakeTransport) setErrors(download, upload error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadErr = download
	f.uploadErr = upload
}

type fixture struct {
	store   *store.Store
	remote  *fakeTransport
	sync    SyncService
	auth    AuthService
	records RecordService
	clock   *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(opts ...store.Option) *fixture {
	clk := &clock{now: t3}
	st := store.New(kv.NewMemoryStore(), opts...)
	tr := newFakeTransport()
	ss := NewSyncService(st, tr, nil, logging.Nop{}, SyncOptions{ReuploadAfterSync: true, Now: clk.Now})

	as := NewAuthService(st, tr, ss, PlaintextVerifier{}, logging.Nop{})
	as.(*authService).now = clk.Now
	rs := NewRecordService(st, ss, logging.Nop{})
	rs.(*recordService).now = clk.Now

	return &fixture{store: st, remote: tr, sync: ss, auth: as, records: rs, clock: clk}
}

func ann() models.Account {
	return models.Account{ID: "u-ann", DisplayName: "Ann", Email: "ann@x.com", CredentialSecret: "secret", CreatedAt: t1}
}

func bob() models.Account {
	return models.Account{ID: "u-bob", DisplayName: "Bob", Email: "bob@x.com", CredentialSecret: "hunter2", CreatedAt: t1}
}

func record(id, owner, name string, updated time.Time) models.TastingRecord {
	return models.TastingRecord{
		ID: id, OwnerID: owner, TeaName: name, Rating: 4, Date: "2024-01-01",
		CreatedAt: t1, UpdatedAt: updated,
	}
}

func (f *fixture) seed(snap models.Snapshot) {
	if err := f.store.SaveQuiet(context.Background(), snap); err != nil {
		panic(err)
	}
}

func (f *fixture) load() models.Snapshot {
	snap, err := f.store.Load(context.Background())
	if err != nil {
		panic(err)
	}
	return snap
}

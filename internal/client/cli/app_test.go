package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/teadiary/internal/client/config"
	"github.com/dmitrijs2005/teadiary/internal/client/export"
	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/client/services"
	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	kv  *kv.MemoryStore
	out *bytes.Buffer
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

// newTestApp builds an App over an in-memory store and the local transport
// that reads its commands' answers from input.
func newTestApp(t *testing.T, env *testEnv, input string) *App {
	t.Helper()
	if env.kv == nil {
		env.kv = kv.NewMemoryStore()
	}
	env.out = &bytes.Buffer{}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.SyncInterval = time.Hour

	st := store.New(env.kv)
	a := newApp(cfg, logging.Nop{}, st, transport.NewLocalTransport(env.kv), nil,
		services.PlaintextVerifier{}, strings.NewReader(input), env.out)
	a.now = func() time.Time { return testNow }
	t.Cleanup(a.Close)
	return a
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

// addAnswers are the prompts of Add in order: name, type, origin, date,
// method, temperature, brewing time, rating, appearance, aroma, taste,
// aftertaste, then multi-line notes.
func addAnswers(name, teaType, date, rating string) []string {
	return []string{name, teaType, "Japan", date, "kyusu", "70", "1m", rating, "", "", "", "", "Grassy", ""}
}

func register(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.Register(context.Background()))
}

func TestApp_RequiresLogin(t *testing.T) {
	a := newTestApp(t, &testEnv{}, "")
	err := a.List(context.Background(), nil)
	assert.ErrorIs(t, err, services.ErrNotSignedIn)
	assert.Contains(t, a.out.(*bytes.Buffer).String(), "Please login first")
}

func TestApp_RegisterAddListShowStats(t *testing.T) {
	stubPassword(t, "secret")
	ctx := context.Background()

	input := append([]string{"Ann", "Ann@X.io"}, addAnswers("Sencha", "green", "2024-03-01", "4")...)
	input = append(input, addAnswers("Assam", "black", "yesterday", "3")...)
	env := &testEnv{}
	a := newTestApp(t, env, lines(input...))

	register(t, a)
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, a.getStatus(), "ann@x.io")

	require.NoError(t, a.Add(ctx))
	require.NoError(t, a.Add(ctx))

	acc, _ := a.currentAccount()
	recs, err := a.records.List(ctx, acc, services.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byName := map[string]models.TastingRecord{}
	for _, r := range recs {
		byName[r.TeaName] = r
	}
	assert.Equal(t, "2024-03-09", byName["Assam"].Date)
	assert.Equal(t, 70, byName["Sencha"].Temperature)
	assert.Equal(t, "Grassy", byName["Sencha"].Notes)

	env.out.Reset()
	require.NoError(t, a.List(ctx, []string{"type=green"}))
	out := env.out.String()
	assert.Contains(t, out, "Sencha")
	assert.NotContains(t, out, "Assam")
	assert.Contains(t, out, "1 record(s)")

	env.out.Reset()
	require.NoError(t, a.Show(ctx, []string{shortID(byName["Assam"].ID)}))
	assert.Contains(t, env.out.String(), "★★★☆☆")
	assert.Contains(t, env.out.String(), "kyusu")

	env.out.Reset()
	require.NoError(t, a.Stats(ctx))
	out = env.out.String()
	assert.Contains(t, out, "Total tastings: 2")
	assert.Contains(t, out, "Average rating: 3.5")
}

func TestApp_AddRejectsInvalidRating(t *testing.T) {
	stubPassword(t, "secret")
	input := append([]string{"Ann", "ann@x.io"}, addAnswers("Sencha", "green", "", "9")...)
	a := newTestApp(t, &testEnv{}, lines(input...))
	register(t, a)

	err := a.Add(context.Background())
	assert.ErrorIs(t, err, models.ErrInvalidEntity)
	assert.Contains(t, a.out.(*bytes.Buffer).String(), "Add failed")
}

func TestApp_EditAndDelete(t *testing.T) {
	stubPassword(t, "secret")
	ctx := context.Background()

	input := append([]string{"Ann", "ann@x.io"}, addAnswers("Sencha", "green", "2024-03-01", "4")...)
	// edit: keep everything except the rating
	input = append(input, "", "", "", "", "", "", "", "5", "", "", "", "", "")
	input = append(input, "n", "y")
	a := newTestApp(t, &testEnv{}, lines(input...))
	register(t, a)
	require.NoError(t, a.Add(ctx))

	acc, _ := a.currentAccount()
	recs, err := a.records.List(ctx, acc, services.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	id := recs[0].ID

	require.NoError(t, a.Edit(ctx, []string{id}))
	r, err := a.records.Get(ctx, acc, id)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Rating)
	assert.Equal(t, "Sencha", r.TeaName)
	assert.Equal(t, "2024-03-01", r.Date)
	assert.Equal(t, 70, r.Temperature)
	assert.Equal(t, "Grassy", r.Notes)

	require.NoError(t, a.Delete(ctx, []string{id}))
	_, err = a.records.Get(ctx, acc, id)
	require.NoError(t, err, "answer n keeps the record")

	require.NoError(t, a.Delete(ctx, []string{id}))
	_, err = a.records.Get(ctx, acc, id)
	assert.ErrorIs(t, err, services.ErrRecordNotFound)

	err = a.Show(ctx, []string{"nope"})
	assert.ErrorIs(t, err, services.ErrRecordNotFound)
}

func TestApp_LoginLogout(t *testing.T) {
	stubPassword(t, "secret")
	ctx := context.Background()
	env := &testEnv{}

	a := newTestApp(t, env, lines("Ann", "ann@x.io"))
	register(t, a)
	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())

	b := newTestApp(t, env, lines("ann@x.io", "ann@x.io"))
	stubPassword(t, "wrong")
	err := b.Login(ctx)
	assert.ErrorIs(t, err, services.ErrLoginFailed)
	assert.Contains(t, env.out.String(), "Login unsuccessful: login failed")
	assert.False(t, b.isLoggedIn())

	stubPassword(t, "secret")
	require.NoError(t, b.Login(ctx))
	assert.True(t, b.isLoggedIn())
}

func TestApp_SyncAndStatus(t *testing.T) {
	stubPassword(t, "secret")
	ctx := context.Background()
	env := &testEnv{}

	a := newTestApp(t, env, lines("Ann", "ann@x.io"))
	register(t, a)

	require.NoError(t, a.Sync(ctx))
	assert.Contains(t, env.out.String(), "Sync complete")

	env.out.Reset()
	require.NoError(t, a.Status(ctx))
	out := env.out.String()
	assert.Contains(t, out, "ann@x.io")
	assert.Contains(t, out, "Last sync:")
	assert.NotContains(t, out, "never")
}

func TestApp_ExportImport(t *testing.T) {
	stubPassword(t, "secret")
	ctx := context.Background()
	dir := t.TempDir()

	input := append([]string{"Ann", "ann@x.io"}, addAnswers("Sencha", "green", "2024-03-01", "4")...)
	a := newTestApp(t, &testEnv{}, lines(input...))
	register(t, a)
	require.NoError(t, a.Add(ctx))

	for _, format := range []string{"json", "csv", "html"} {
		path := filepath.Join(dir, "out."+format)
		require.NoError(t, a.Export(ctx, []string{format, path}), format)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Sencha", format)
	}
	assert.Error(t, a.Export(ctx, []string{"xlsx"}))
	assert.Error(t, a.Export(ctx, nil))

	out := a.out.(*bytes.Buffer)
	out.Reset()
	require.NoError(t, a.Export(ctx, []string{"link"}))
	link := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(link, a.config.RemoteURL+"#sync="), link)

	// a fresh device imports the file, then the link
	b := newTestApp(t, &testEnv{}, "")
	require.NoError(t, b.Import(ctx, []string{filepath.Join(dir, "out.json")}))
	assert.Contains(t, b.out.(*bytes.Buffer).String(), "1 record(s) added")

	snap, err := b.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Sencha", snap.Records[0].TeaName)

	c := newTestApp(t, &testEnv{}, "")
	require.NoError(t, c.Import(ctx, []string{link}))
	snap, err = c.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 1)

	err = c.Import(ctx, []string{filepath.Join(dir, "out.csv")})
	assert.ErrorIs(t, err, export.ErrUnrecognized)
	assert.Error(t, c.Import(ctx, []string{"garbage"}))
}

func TestApp_Diag(t *testing.T) {
	a := newTestApp(t, &testEnv{}, "")
	require.NoError(t, a.Diag(context.Background()))
	assert.NotEmpty(t, a.out.(*bytes.Buffer).String())
}

type downTransport struct{}

func (downTransport) Upload(context.Context, string, models.Snapshot) error { return transport.ErrUnavailable }
func (downTransport) Download(context.Context, string) (models.Snapshot, error) {
	return models.Snapshot{}, transport.ErrUnavailable
}
func (downTransport) Ping(context.Context) error { return errors.New("offline") }

func TestApp_OnlineStatusWatcher(t *testing.T) {
	a := newTestApp(t, &testEnv{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.StartOnlineStatusWatcher(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool { return a.currentMode() == ModeOnline }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	a.transport = downTransport{}
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go a.StartOnlineStatusWatcher(ctx, time.Hour)
	require.Eventually(t, func() bool { return a.currentMode() == ModeOffline }, 2*time.Second, 10*time.Millisecond)
}

func TestApp_PromptFollowsSyncStatus(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.SyncInterval = time.Hour

	a := newApp(cfg, logging.Nop{}, store.New(kv.NewMemoryStore()), downTransport{}, nil,
		services.PlaintextVerifier{}, strings.NewReader(""), &bytes.Buffer{})
	t.Cleanup(a.Close)

	acc := models.Account{ID: "u1", Email: "ann@x.io", CreatedAt: testNow}
	a.signIn(ctx, acc)

	// the first periodic check fails against the unreachable transport
	require.Eventually(t, func() bool {
		return strings.Contains(a.getStatus(), string(services.StateError))
	}, 2*time.Second, 10*time.Millisecond)

	a.signOut()
	a.sync.TriggerManualSync(ctx, acc)
	assert.Equal(t, services.SyncState(""), a.currentSyncState())
}

func TestApp_RunExitsOnEOF(t *testing.T) {
	silenceREPL(t)
	a := newTestApp(t, &testEnv{}, "help\nexit\n")

	done := make(chan struct{})
	go func() {
		a.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNotifyURL(t *testing.T) {
	u, err := notifyURL("https://sync.example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "wss://sync.example.com/base/api/notify?channel=teadiary", u)

	u, err = notifyURL("http://127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/api/notify?channel=teadiary", u)

	_, err = notifyURL("ftp://x")
	assert.Error(t, err)
}

func TestOpenPeers(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()

	cfg.Notify = config.NotifyNone
	ch, err := openPeers(context.Background(), cfg, "o")
	require.NoError(t, err)
	assert.Nil(t, ch)

	cfg.Notify = config.NotifyBus
	ch, err = openPeers(context.Background(), cfg, "o")
	require.NoError(t, err)
	require.NotNil(t, ch)
	_ = ch.Close()

	cfg.Notify = config.NotifyDir
	ch, err = openPeers(context.Background(), cfg, "o")
	require.NoError(t, err)
	require.NotNil(t, ch)
	_ = ch.Close()

	cfg.Notify = "pigeon"
	_, err = openPeers(context.Background(), cfg, "o")
	assert.Error(t, err)
}

func TestNewApp_LocalTransport(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.Notify = config.NotifyNone

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(cfg.DatabasePath())
	assert.NoError(t, err)

	cfg.Transport = "carrier-pigeon"
	_, err = NewApp(context.Background(), cfg)
	assert.Error(t, err)
}

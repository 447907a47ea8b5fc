package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/teadiary/internal/client/config"
	"github.com/dmitrijs2005/teadiary/internal/client/diagnostics"
	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/client/notify"
	"github.com/dmitrijs2005/teadiary/internal/client/services"
	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/filex"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/reconcile"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const onlineCheckInterval = 30 * time.Second

type App struct {
	config    *config.Config
	log       logging.Logger
	store     *store.Store
	transport transport.Transport
	peers     notify.Channel
	auth      services.AuthService
	records   services.RecordService
	sync      services.SyncService
	checker   *diagnostics.Checker
	closers   []io.Closer

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time

	mu         sync.Mutex
	account    *models.Account
	mode       Mode
	syncState  services.SyncStatus
	stopSignIn context.CancelFunc
}

// NewApp opens the local database, the peer notifier and the configured
// transport.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       c.LogPath(),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      slog.LevelInfo,
	})
	closers := []io.Closer{logCloser}

	kvs, err := kv.Open(ctx, c.DatabasePath())
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	closers = append(closers, kvs)

	origin := uuid.NewString()
	peers, err := openPeers(ctx, c, origin)
	if err != nil {
		logger.Warn(ctx, "peer notifications disabled", "error", err)
		peers = nil
	}
	if peers != nil {
		closers = append(closers, peers)
	}

	opts := []store.Option{store.WithLogger(logger.With("module", "store"))}
	if peers != nil {
		opts = append(opts, store.WithPublisher(peers, origin))
	}
	st := store.New(kvs, opts...)

	tr, err := transport.New(ctx, transport.Settings{
		Kind:      c.Transport,
		RemoteURL: c.RemoteURL,
		MasterKey: c.MasterKey,
		GRPCAddr:  c.GRPCAddr,
		S3: transport.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		},
	}, st, logger)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	if cl, ok := tr.(io.Closer); ok {
		closers = append(closers, cl)
	}

	verifier, err := services.NewCredentialVerifier(c.CredentialScheme)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	if c.CredentialScheme == "" || c.CredentialScheme == services.SchemePlaintext {
		logger.Warn(ctx, "passwords are stored in plain text; set credential_scheme=argon2 to hash them")
	}

	a := newApp(c, logger, st, tr, peers, verifier, os.Stdin, os.Stdout)
	a.closers = closers
	return a, nil
}

func newApp(c *config.Config, l logging.Logger, st *store.Store, tr transport.Transport, peers notify.Channel,
	v services.CredentialVerifier, in io.Reader, out io.Writer) *App {

	ss := services.NewSyncService(st, tr, peers, l, services.SyncOptions{
		Interval:          c.SyncInterval,
		ReuploadAfterSync: c.ReuploadAfterSync,
	})
	return &App{
		config:    c,
		log:       l,
		store:     st,
		transport: tr,
		peers:     peers,
		sync:      ss,
		auth:      services.NewAuthService(st, tr, ss, v, l),
		records:   services.NewRecordService(st, ss, l),
		checker:   diagnostics.NewChecker(st, tr, c.Transport, l),
		reader:    bufio.NewReader(in),
		out:       out,
		now:       time.Now,
		mode:      ModeOffline,
	}
}

// openPeers builds the channel other local processes announce their writes
// on. It returns nil when notifications are turned off.
func openPeers(ctx context.Context, c *config.Config, origin string) (notify.Channel, error) {
	switch c.Notify {
	case config.NotifyNone:
		return nil, nil
	case config.NotifyBus:
		return notify.NewBus(16), nil
	case "", config.NotifyDir:
		return notify.NewDirChannel(c.PeersDir(), origin)
	case config.NotifyWS:
		u, err := notifyURL(c.RemoteURL)
		if err != nil {
			return nil, err
		}
		return notify.DialWS(ctx, u, http.Header{common.MasterKeyHeaderName: {c.MasterKey}})
	default:
		return nil, fmt.Errorf("unknown notify mode %q", c.Notify)
	}
}

// notifyURL maps the document store address to its websocket hub.
func notifyURL(remote string) (string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("remote url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("remote url %q must be http or https", remote)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/notify"
	u.RawQuery = url.Values{"channel": {"teadiary"}}.Encode()
	return u.String(), nil
}

func closeAll(cs []io.Closer) {
	for i := len(cs) - 1; i >= 0; i-- {
		_ = cs[i].Close()
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) currentAccount() (models.Account, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account == nil {
		return models.Account{}, false
	}
	return *a.account, true
}

func (a *App) isLoggedIn() bool {
	_, ok := a.currentAccount()
	return ok
}

// signIn remembers acc and starts its periodic sync.
func (a *App) signIn(ctx context.Context, acc models.Account) {
	a.signOut()

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.account = &acc
	a.syncState = services.SyncStatus{AccountID: acc.ID, State: services.StateIdle}
	a.mu.Unlock()

	unsubscribe := a.sync.Subscribe(a.observeSync)
	a.mu.Lock()
	a.stopSignIn = func() {
		cancel()
		unsubscribe()
	}
	a.mu.Unlock()

	go a.sync.RunPeriodic(ctx, acc)
}

// observeSync keeps the prompt's view of the signed-in account's sync state
// current, including syncs started in the background.
func (a *App) observeSync(st services.SyncStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.account == nil || a.account.ID != st.AccountID {
		return
	}
	prev := a.syncState.State
	a.syncState = st
	if st.State == services.StateError && prev != services.StateError {
		a.log.Warn(context.Background(), "sync failed", "account", a.account.Email, "error", st.LastError)
	}
}

func (a *App) currentSyncState() services.SyncState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.syncState.State
}

func (a *App) signOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopSignIn != nil {
		a.stopSignIn()
		a.stopSignIn = nil
	}
	a.account = nil
	a.syncState = services.SyncStatus{}
}

// requireAccount returns the signed-in account or prints a hint.
func (a *App) requireAccount() (models.Account, error) {
	acc, ok := a.currentAccount()
	if !ok {
		a.println(errorStyle.Render("Please login first"))
		return models.Account{}, services.ErrNotSignedIn
	}
	return acc, nil
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// fail reports err to the user and the log, and returns it unchanged.
func (a *App) fail(ctx context.Context, what string, err error) error {
	a.log.Warn(ctx, what+" failed", "error", err)
	a.println(errorStyle.Render(fmt.Sprintf("%s failed: %v", what, err)))
	return err
}

func (a *App) Close() {
	a.signOut()
	closeAll(a.closers)
}

// Run restores a remembered session, starts background watchers and runs
// the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.println(titleStyle.Render("Welcome to the tea diary (type 'help' for commands)"))

	if acc, ok, err := a.auth.CurrentAccount(ctx); err != nil {
		a.log.Warn(ctx, "failed to restore session", "error", err)
	} else if ok {
		a.signIn(ctx, acc)
		a.println("Signed in as", acc.Email)
	}

	stopPeers, err := a.sync.WatchPeers(ctx, func(st reconcile.Stats) {
		a.log.Info(ctx, "changes from another window merged",
			"records_added", st.RecordsAdded, "records_replaced", st.RecordsReplaced, "records_removed", st.RecordsRemoved)
	})
	if err != nil {
		a.log.Warn(ctx, "peer watcher not started", "error", err)
	} else {
		defer stopPeers()
	}

	go a.StartOnlineStatusWatcher(ctx, onlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// StartOnlineStatusWatcher pings the remote side every interval and keeps
// the mode shown in the prompt current.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	p, ok := a.transport.(transport.Pinger)
	if !ok {
		return
	}

	check := func() {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			a.setMode(ModeOffline)
			return
		}
		a.setMode(ModeOnline)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	parts := make([]string, 0, 3)
	acc, ok := a.currentAccount()
	if ok {
		parts = append(parts, acc.Email)
	}
	parts = append(parts, string(a.currentMode()))
	if ok {
		if st := a.currentSyncState(); st != services.StateIdle && st != "" {
			parts = append(parts, string(st))
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

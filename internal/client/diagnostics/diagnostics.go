// Package diagnostics checks the local store and the remote transport and
// produces a plain-text report for troubleshooting sync problems.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/store"
	"github.com/dmitrijs2005/teadiary/internal/client/transport"
	"github.com/dmitrijs2005/teadiary/internal/logging"
)

const (
	probeTimeout = 5 * time.Second
	probeKey     = "tea-app-diagnostics-probe"
)

type StorageCheck struct {
	Available  bool
	Accounts   int
	Records    int
	Tombstones int
	Bindings   map[string]string
	Err        error
}

type RemoteCheck struct {
	Transport string
	Supported bool
	Reachable bool
	Latency   time.Duration
	Err       error
}

type Report struct {
	GeneratedAt time.Time
	Storage     StorageCheck
	Remote      RemoteCheck
	Suggestions []string
}

type Checker struct {
	store     *store.Store
	transport transport.Transport
	kind      string
	log       logging.Logger
	now       func() time.Time
}

// NewChecker builds a checker. kind is the configured transport name and
// only appears in the report.
func NewChecker(st *store.Store, tr transport.Transport, kind string, log logging.Logger) *Checker {
	return &Checker{store: st, transport: tr, kind: kind, log: log, now: time.Now}
}

// Run performs all checks. It never fails: problems end up in the report.
func (c *Checker) Run(ctx context.Context) Report {
	r := Report{GeneratedAt: c.now()}
	r.Storage = c.checkStorage(ctx)
	r.Remote = c.checkRemote(ctx)
	r.Suggestions = suggest(r)

	c.log.Info(ctx, "diagnostics finished",
		"storage", r.Storage.Available,
		"remote", r.Remote.Reachable,
		"latency", r.Remote.Latency,
	)
	return r
}

func (c *Checker) checkStorage(ctx context.Context) StorageCheck {
	var sc StorageCheck

	kvs := c.store.KV()
	if err := kvs.Set(ctx, probeKey, []byte("ok")); err != nil {
		sc.Err = fmt.Errorf("write probe: %w", err)
		return sc
	}
	if err := kvs.Delete(ctx, probeKey); err != nil {
		sc.Err = fmt.Errorf("delete probe: %w", err)
		return sc
	}
	sc.Available = true

	snap, err := c.store.Load(ctx)
	if err != nil {
		sc.Err = err
		return sc
	}
	sc.Accounts = len(snap.Accounts)
	sc.Records = len(snap.Records)
	sc.Tombstones = len(snap.Tombstones)

	sc.Bindings, err = c.store.PartitionBindings(ctx)
	if err != nil {
		sc.Err = err
	}
	return sc
}

func (c *Checker) checkRemote(ctx context.Context) RemoteCheck {
	rc := RemoteCheck{Transport: c.kind}

	p, ok := c.transport.(transport.Pinger)
	if !ok {
		return rc
	}
	rc.Supported = true

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := c.now()
	err := p.Ping(ctx)
	rc.Latency = c.now().Sub(start)
	if err != nil {
		rc.Err = err
		return rc
	}
	rc.Reachable = true
	return rc
}

func suggest(r Report) []string {
	var out []string
	if r.Remote.Supported && !r.Remote.Reachable {
		out = append(out, "remote storage is unreachable: check the network and the remote_url / master_key settings")
	}
	if !r.Storage.Available {
		out = append(out, "local storage is not writable: check data_dir permissions and free disk space")
	}
	if r.Storage.Available && r.Storage.Accounts == 0 {
		out = append(out, "no local accounts: log in with an existing account to restore it from remote storage")
	}
	if r.Remote.Reachable && r.Remote.Latency > 2*time.Second {
		out = append(out, "remote storage is slow: sync may time out")
	}
	return out
}

// WriteText renders r for humans.
func (r Report) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Diagnostics report (%s)\n\n", r.GeneratedAt.Format(time.RFC3339))

	b.WriteString("Local storage\n")
	fmt.Fprintf(&b, "  available:  %t\n", r.Storage.Available)
	fmt.Fprintf(&b, "  accounts:   %d\n", r.Storage.Accounts)
	fmt.Fprintf(&b, "  records:    %d\n", r.Storage.Records)
	fmt.Fprintf(&b, "  deleted:    %d\n", r.Storage.Tombstones)
	emails := make([]string, 0, len(r.Storage.Bindings))
	for e := range r.Storage.Bindings {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	for _, e := range emails {
		fmt.Fprintf(&b, "  partition:  %s -> %s\n", e, r.Storage.Bindings[e])
	}
	if r.Storage.Err != nil {
		fmt.Fprintf(&b, "  error:      %v\n", r.Storage.Err)
	}

	b.WriteString("\nRemote storage\n")
	fmt.Fprintf(&b, "  transport:  %s\n", r.Remote.Transport)
	switch {
	case !r.Remote.Supported:
		b.WriteString("  reachable:  unknown (probe not supported)\n")
	case r.Remote.Reachable:
		fmt.Fprintf(&b, "  reachable:  true (%s)\n", r.Remote.Latency.Round(time.Millisecond))
	default:
		fmt.Fprintf(&b, "  reachable:  false\n  error:      %v\n", r.Remote.Err)
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("\nSuggestions\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/client/analytics"
	"github.com/dmitrijs2005/teadiary/internal/client/export"
	"github.com/dmitrijs2005/teadiary/internal/client/services"
	"github.com/dmitrijs2005/teadiary/internal/filex"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

// Sync runs a full download, merge and upload cycle for the signed-in
// account and prints the outcome.
func (a *App) Sync(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	a.println("Syncing...")
	st := a.sync.TriggerManualSync(ctx, acc)
	if st.State == services.StateError {
		a.println(errorStyle.Render("Sync failed: " + st.LastError))
		return errors.New(st.LastError)
	}
	a.println(okStyle.Render("Sync complete"))
	return nil
}

// Status prints the sync state of the signed-in account.
func (a *App) Status(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	st := a.sync.Status(ctx, acc)

	last := "never"
	if !st.LastSyncTime.IsZero() {
		last = st.LastSyncTime.Local().Format("2006-01-02 15:04:05")
	}
	a.printf("%s %s\n", labelStyle.Render("Account:"), acc.Email)
	a.printf("%s %s\n", labelStyle.Render("Transport:"), a.config.Transport)
	a.printf("%s %s\n", labelStyle.Render("Connectivity:"), a.currentMode())
	a.printf("%s %s\n", labelStyle.Render("State:"), st.State)
	a.printf("%s %s\n", labelStyle.Render("Last sync:"), last)
	a.printf("%s %t\n", labelStyle.Render("Needs sync:"), st.NeedsSync)
	if st.LastError != "" {
		a.printf("%s %s\n", labelStyle.Render("Last error:"), errorStyle.Render(st.LastError))
	}
	return nil
}

// Stats prints tasting statistics of the signed-in account.
func (a *App) Stats(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	records, err := a.records.List(ctx, acc, services.Filter{})
	if err != nil {
		return a.fail(ctx, "Stats", err)
	}

	s := analytics.Summarize(records)
	if s.Total == 0 {
		a.println(mutedStyle.Render("No tasting records yet"))
		return nil
	}

	a.println(titleStyle.Render("Your tea statistics"))
	a.printf("Total tastings: %d\n", s.Total)
	a.printf("Average rating: %.1f\n", s.AverageRating)
	a.printf("Favourite type: %s\n", s.FavoriteType)

	a.println(labelStyle.Render("By type"))
	for _, t := range s.Types {
		a.printf("  %-12s %3d  %5.1f%%\n", t.TeaType, t.Count, t.Percentage)
	}
	a.println(labelStyle.Render("By rating"))
	for i := len(s.Ratings) - 1; i >= 0; i-- {
		a.printf("  %s %3d\n", stars(i+1), s.Ratings[i])
	}
	if len(s.Monthly) > 0 {
		a.println(labelStyle.Render("By month"))
		for _, m := range s.Monthly {
			a.printf("  %s %3d\n", m.Month, m.Count)
		}
	}
	return nil
}

// Export writes the signed-in account's diary as json, csv, html or a
// share link. Files go to the given path or to teadiary-<date>.<format>.
func (a *App) Export(ctx context.Context, args []string) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		a.println("Usage: export json|csv|html|link [path]")
		return errors.New("export format required")
	}
	format := strings.ToLower(args[0])

	snap, err := a.store.Load(ctx)
	if err != nil {
		return a.fail(ctx, "Export", err)
	}
	scoped := snap.ScopedTo(acc)
	now := a.now()

	var buf bytes.Buffer
	switch format {
	case "json":
		err = export.WriteJSON(&buf, export.NewBackup(scoped, now))
	case "csv":
		err = export.WriteCSV(&buf, scoped.Records)
	case "html":
		err = export.WriteHTML(&buf, ownerName(acc), scoped.Records, now)
	case "link":
		link, lerr := export.ShareLink(a.config.RemoteURL, export.NewBackup(scoped, now))
		if lerr != nil {
			return a.fail(ctx, "Export", lerr)
		}
		a.println(link)
		return nil
	default:
		a.println("Usage: export json|csv|html|link [path]")
		return fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return a.fail(ctx, "Export", err)
	}

	path := fmt.Sprintf("teadiary-%s.%s", now.Format(time.DateOnly), format)
	if len(args) > 1 {
		path = args[1]
	}
	if err := filex.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return a.fail(ctx, "Export", err)
	}
	a.println(okStyle.Render("Exported"), len(scoped.Records), "record(s) to", path)
	return nil
}

// Import merges a backup file, a share link or raw base64 into the local
// diary with the usual conflict rules, then pushes it upstream when signed in.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.println("Usage: import <file|link>")
		return errors.New("import source required")
	}
	src := strings.Join(args, " ")

	var snap models.Snapshot
	data, err := os.ReadFile(src)
	if err == nil {
		snap, err = export.Parse(data)
	} else if inline, perr := export.Parse([]byte(src)); perr == nil {
		snap, err = inline, nil
	}
	if err != nil {
		return a.fail(ctx, "Import", err)
	}
	stats, err := a.sync.ImportSnapshot(ctx, snap)
	if err != nil {
		return a.fail(ctx, "Import", err)
	}

	a.printf("%s %d account(s) added, %d record(s) added, %d updated, %d removed\n",
		okStyle.Render("Imported:"), stats.AccountsAdded, stats.RecordsAdded, stats.RecordsReplaced, stats.RecordsRemoved)

	if acc, ok := a.currentAccount(); ok {
		if err := a.sync.PushAfterWrite(ctx, acc); err != nil {
			a.log.Warn(ctx, "push after import failed", "error", err)
		}
	}
	return nil
}

// Diag checks the local store and the remote side and prints a report.
func (a *App) Diag(ctx context.Context) error {
	report := a.checker.Run(ctx)
	if err := report.WriteText(a.out); err != nil {
		return err
	}
	if report.Storage.Err != nil {
		return report.Storage.Err
	}
	return report.Remote.Err
}

func ownerName(acc models.Account) string {
	if acc.DisplayName != "" {
		return acc.DisplayName
	}
	return acc.Email
}

package reconcile

import "github.com/dmitrijs2005/teadiary/internal/models"

// Stats summarises how a merge changed a snapshot. It is used for logging.
type Stats struct {
	AccountsAdded    int
	AccountsReplaced int
	RecordsAdded     int
	RecordsReplaced  int
	RecordsRemoved   int
}

// Changed reports whether anything differs between the two snapshots.
func (s Stats) Changed() bool {
	return s != Stats{}
}

// Diff compares a snapshot before and after a merge.
func Diff(before, after models.Snapshot) Stats {
	var st Stats

	accounts := make(map[string]models.Account, len(before.Accounts))
	for _, a := range before.Accounts {
		accounts[a.Email] = a
	}
	for _, a := range after.Accounts {
		prev, ok := accounts[a.Email]
		switch {
		case !ok:
			st.AccountsAdded++
		case prev != a:
			st.AccountsReplaced++
		}
	}

	records := make(map[string]models.TastingRecord, len(before.Records))
	for _, r := range before.Records {
		records[r.ID] = r
	}
	seen := make(map[string]struct{}, len(after.Records))
	for _, r := range after.Records {
		seen[r.ID] = struct{}{}
		prev, ok := records[r.ID]
		switch {
		case !ok:
			st.RecordsAdded++
		case !prev.UpdatedAt.Equal(r.UpdatedAt):
			st.RecordsReplaced++
		}
	}
	for id := range records {
		if _, ok := seen[id]; !ok {
			st.RecordsRemoved++
		}
	}
	return st
}

// Package reconcile merges two snapshots of the diary into one.
//
// The merge is per entity and never looks inside an entity: the winning copy
// replaces the losing one wholesale.
//
//   - Accounts match on exact email. The remote copy wins when its CreatedAt
//     is equal to or later than the local one.
//   - Records match on id. The remote copy wins only when its UpdatedAt is
//     strictly later; ties keep the local copy.
//   - Tombstones match on id and the later DeletedAt wins. A record not
//     updated after its tombstone is dropped from the result.
//
// Local entities keep their relative order and remote-only entities are
// appended in remote order. Entities without identity fields are skipped.
// Inputs are never modified.
package reconcile

import (
	"github.com/dmitrijs2005/teadiary/internal/models"
)

// Reconcile returns the merge of local and remote.
func Reconcile(local, remote models.Snapshot) models.Snapshot {
	out := models.Snapshot{
		Accounts:    mergeAccounts(local.Accounts, remote.Accounts),
		Tombstones:  mergeTombstones(local.Tombstones, remote.Tombstones),
		GeneratedAt: local.GeneratedAt,
	}
	if remote.GeneratedAt.After(out.GeneratedAt) {
		out.GeneratedAt = remote.GeneratedAt
	}

	records := mergeRecords(local.Records, remote.Records)
	out.Records = bury(records, out.Tombstones)

	return out
}

func mergeAccounts(local, remote []models.Account) []models.Account {
	out := make([]models.Account, 0, len(local)+len(remote))
	byEmail := make(map[string]int, len(local)+len(remote))

	for _, a := range local {
		if !a.HasIdentity() {
			continue
		}
		if _, dup := byEmail[a.Email]; dup {
			continue
		}
		byEmail[a.Email] = len(out)
		out = append(out, a)
	}

	for _, a := range remote {
		if !a.HasIdentity() {
			continue
		}
		i, ok := byEmail[a.Email]
		if !ok {
			byEmail[a.Email] = len(out)
			out = append(out, a)
			continue
		}
		if !a.CreatedAt.Before(out[i].CreatedAt) {
			out[i] = a
		}
	}
	return out
}

func mergeRecords(local, remote []models.TastingRecord) []models.TastingRecord {
	out := make([]models.TastingRecord, 0, len(local)+len(remote))
	byID := make(map[string]int, len(local)+len(remote))

	add := func(r models.TastingRecord) {
		byID[r.ID] = len(out)
		r.Images = append([]string(nil), r.Images...)
		out = append(out, r)
	}

	for _, r := range local {
		if !r.HasIdentity() {
			continue
		}
		if _, dup := byID[r.ID]; dup {
			continue
		}
		add(r)
	}

	for _, r := range remote {
		if !r.HasIdentity() {
			continue
		}
		i, ok := byID[r.ID]
		if !ok {
			add(r)
			continue
		}
		if r.UpdatedAt.After(out[i].UpdatedAt) {
			r.Images = append([]string(nil), r.Images...)
			out[i] = r
		}
	}
	return out
}

func mergeTombstones(local, remote []models.Tombstone) []models.Tombstone {
	if len(local) == 0 && len(remote) == 0 {
		return nil
	}

	out := make([]models.Tombstone, 0, len(local)+len(remote))
	byID := make(map[string]int, len(local)+len(remote))

	for _, src := range [][]models.Tombstone{local, remote} {
		for _, t := range src {
			if t.ID == "" {
				continue
			}
			i, ok := byID[t.ID]
			if !ok {
				byID[t.ID] = len(out)
				out = append(out, t)
				continue
			}
			if t.DeletedAt.After(out[i].DeletedAt) {
				out[i] = t
			}
		}
	}
	return out
}

func bury(records []models.TastingRecord, tombstones []models.Tombstone) []models.TastingRecord {
	if len(tombstones) == 0 {
		return records
	}

	byID := make(map[string]models.Tombstone, len(tombstones))
	for _, t := range tombstones {
		byID[t.ID] = t
	}

	kept := records[:0]
	for _, r := range records {
		if t, ok := byID[r.ID]; ok && t.Buries(r) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

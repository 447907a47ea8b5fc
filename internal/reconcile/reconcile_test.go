package reconcile

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time { return base.AddDate(0, 0, days) }

func account(id, email string, created time.Time) models.Account {
	return models.Account{ID: id, DisplayName: id, Email: email, CredentialSecret: "pw", CreatedAt: created}
}

func record(id, owner, name string, updated time.Time) models.TastingRecord {
	return models.TastingRecord{ID: id, OwnerID: owner, TeaName: name, Rating: 4, CreatedAt: base, UpdatedAt: updated}
}

func TestReconcile_NewerRemoteRecordWins(t *testing.T) {
	local := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "Longjing", at(0))}}
	remote := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "Longjing v2", at(1))}}

	got := Reconcile(local, remote)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "Longjing v2", got.Records[0].TeaName)
}

func TestReconcile_RecordTieKeepsLocal(t *testing.T) {
	local := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "local", at(0))}}
	remote := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "remote", at(0))}}

	got := Reconcile(local, remote)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "local", got.Records[0].TeaName)
}

func TestReconcile_OlderRemoteRecordLoses(t *testing.T) {
	local := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "local", at(2))}}
	remote := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "remote", at(1))}}

	assert.Equal(t, "local", Reconcile(local, remote).Records[0].TeaName)
}

func TestReconcile_AccountCreatedAtTieFavoursRemote(t *testing.T) {
	l := account("u1", "a@x.com", at(0))
	r := account("u1", "a@x.com", at(0))
	r.DisplayName = "remote name"

	got := Reconcile(models.Snapshot{Accounts: []models.Account{l}}, models.Snapshot{Accounts: []models.Account{r}})

	require.Len(t, got.Accounts, 1)
	assert.Equal(t, "remote name", got.Accounts[0].DisplayName)
}

func TestReconcile_OlderRemoteAccountLoses(t *testing.T) {
	l := account("u1", "a@x.com", at(1))
	r := account("u-old", "a@x.com", at(0))

	got := Reconcile(models.Snapshot{Accounts: []models.Account{l}}, models.Snapshot{Accounts: []models.Account{r}})

	require.Len(t, got.Accounts, 1)
	assert.Equal(t, "u1", got.Accounts[0].ID)
}

func TestReconcile_AccountEmailMatchIsExact(t *testing.T) {
	l := account("u1", "a@x.com", at(0))
	r := account("u2", "A@x.com", at(1))

	got := Reconcile(models.Snapshot{Accounts: []models.Account{l}}, models.Snapshot{Accounts: []models.Account{r}})

	assert.Len(t, got.Accounts, 2)
}

func TestReconcile_OrderLocalThenRemoteOnly(t *testing.T) {
	local := models.Snapshot{Records: []models.TastingRecord{
		record("b", "u", "b", at(0)),
		record("a", "u", "a", at(0)),
	}}
	remote := models.Snapshot{Records: []models.TastingRecord{
		record("z", "u", "z", at(0)),
		record("a", "u", "a2", at(3)),
		record("y", "u", "y", at(0)),
	}}

	got := Reconcile(local, remote)

	ids := make([]string, 0, len(got.Records))
	for _, r := range got.Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b", "a", "z", "y"}, ids)
	assert.Equal(t, "a2", got.Records[1].TeaName)
}

func TestReconcile_NilCollectionsAreEmpty(t *testing.T) {
	remote := models.Snapshot{
		Accounts: []models.Account{account("u1", "a@x.com", at(0))},
		Records:  []models.TastingRecord{record("1", "u1", "Pu-erh", at(0))},
	}

	assert.NotPanics(t, func() {
		got := Reconcile(models.Snapshot{}, remote)
		assert.Len(t, got.Accounts, 1)
		assert.Len(t, got.Records, 1)

		empty := Reconcile(models.Snapshot{}, models.Snapshot{})
		assert.Empty(t, empty.Accounts)
		assert.Empty(t, empty.Records)
	})
}

func TestReconcile_SkipsEntitiesWithoutIdentity(t *testing.T) {
	remote := models.Snapshot{
		Accounts: []models.Account{{ID: "x"}, account("u1", "a@x.com", at(0))},
		Records:  []models.TastingRecord{{ID: "no-owner"}, {OwnerID: "u1"}, record("1", "u1", "ok", at(0))},
	}

	got := Reconcile(models.Snapshot{}, remote)

	require.Len(t, got.Accounts, 1)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "1", got.Records[0].ID)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	local := models.Snapshot{
		Accounts: []models.Account{account("u1", "a@x.com", at(0))},
		Records:  []models.TastingRecord{record("1", "u1", "local", at(0))},
	}
	local.Records[0].Images = []string{"img"}
	remote := models.Snapshot{
		Accounts:   []models.Account{account("u1", "a@x.com", at(1))},
		Records:    []models.TastingRecord{record("1", "u1", "remote", at(1))},
		Tombstones: []models.Tombstone{{ID: "9", OwnerID: "u1", DeletedAt: at(1)}},
	}
	localCopy, remoteCopy := local.Clone(), remote.Clone()

	got := Reconcile(local, remote)
	got.Records[0].TeaName = "mutated"
	got.Accounts[0].DisplayName = "mutated"

	assert.Empty(t, cmp.Diff(localCopy, local))
	assert.Empty(t, cmp.Diff(remoteCopy, remote))
}

func TestReconcile_GeneratedAtIsLater(t *testing.T) {
	got := Reconcile(models.Snapshot{GeneratedAt: at(1)}, models.Snapshot{GeneratedAt: at(3)})
	assert.Equal(t, at(3), got.GeneratedAt)

	got = Reconcile(models.Snapshot{GeneratedAt: at(5)}, models.Snapshot{GeneratedAt: at(3)})
	assert.Equal(t, at(5), got.GeneratedAt)
}

func TestReconcile_TombstoneStopsResurrection(t *testing.T) {
	// Device A deleted record 1 after its last edit; device B still has the
	// old copy and reconciles against A's upload.
	deviceA := models.Snapshot{
		Tombstones: []models.Tombstone{{ID: "1", OwnerID: "u", DeletedAt: at(2)}},
	}
	deviceB := models.Snapshot{
		Records: []models.TastingRecord{record("1", "u", "stale", at(1)), record("2", "u", "keep", at(1))},
	}

	got := Reconcile(deviceB, deviceA)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "2", got.Records[0].ID)
	require.Len(t, got.Tombstones, 1)

	// and the other way round
	got = Reconcile(deviceA, deviceB)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "2", got.Records[0].ID)
}

func TestReconcile_EditAfterDeletionSurvives(t *testing.T) {
	local := models.Snapshot{Tombstones: []models.Tombstone{{ID: "1", OwnerID: "u", DeletedAt: at(1)}}}
	remote := models.Snapshot{Records: []models.TastingRecord{record("1", "u", "edited later", at(2))}}

	got := Reconcile(local, remote)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "edited later", got.Records[0].TeaName)
}

func TestReconcile_LatestTombstoneWins(t *testing.T) {
	local := models.Snapshot{Tombstones: []models.Tombstone{{ID: "1", OwnerID: "u", DeletedAt: at(1)}}}
	remote := models.Snapshot{Tombstones: []models.Tombstone{{ID: "1", OwnerID: "u", DeletedAt: at(4)}}}

	got := Reconcile(local, remote)

	require.Len(t, got.Tombstones, 1)
	assert.Equal(t, at(4), got.Tombstones[0].DeletedAt)
}

func TestDiff(t *testing.T) {
	before := models.Snapshot{
		Accounts: []models.Account{account("u1", "a@x.com", at(0))},
		Records:  []models.TastingRecord{record("1", "u1", "a", at(0)), record("2", "u1", "b", at(0))},
	}
	after := models.Snapshot{
		Accounts: []models.Account{account("u1", "a@x.com", at(0)), account("u2", "b@x.com", at(0))},
		Records:  []models.TastingRecord{record("1", "u1", "a2", at(1)), record("3", "u1", "c", at(0))},
	}

	st := Diff(before, after)

	assert.Equal(t, Stats{AccountsAdded: 1, RecordsAdded: 1, RecordsReplaced: 1, RecordsRemoved: 1}, st)
	assert.True(t, st.Changed())
	assert.False(t, Diff(before, before).Changed())
}

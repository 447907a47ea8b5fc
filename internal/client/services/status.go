package services

import "time"

type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateSyncing SyncState = "syncing"
	StateSuccess SyncState = "success"
	StateError   SyncState = "error"
)

// CanTransition reports whether the status indicator may move from s to
// next. A finished sync (success or error) may go back to idle or start
// again; a running one can only finish.
func (s SyncState) CanTransition(next SyncState) bool {
	switch s {
	case StateIdle:
		return next == StateSyncing
	case StateSyncing:
		return next == StateSuccess || next == StateError
	case StateSuccess, StateError:
		return next == StateIdle || next == StateSyncing
	default:
		return false
	}
}

// SyncStatus is what the UI shows for one account.
type SyncStatus struct {
	AccountID    string
	State        SyncState
	LastSyncTime time.Time // zero when the account never synced
	NeedsSync    bool
	LastError    string
}

// Package notify broadcasts committed local snapshots to other execution
// contexts of the same device (other REPL sessions, the teactl tool, a
// background daemon) so they can merge a change without a network round
// trip.
//
// Delivery is best effort. A context that is not subscribed when a message
// is sent never sees it, and the remote transport stays the only way a
// change reaches another device.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

var ErrClosed = errors.New("channel closed")

// Message announces a snapshot that was just written locally.
// Receivers drop messages carrying their own Origin.
type Message struct {
	Origin   string          `json:"origin"`
	Snapshot models.Snapshot `json:"snapshot"`
	SentAt   time.Time       `json:"sentAt"`
}

// Handler is invoked once per delivered message.
type Handler func(ctx context.Context, m Message)

// Channel is a publish/subscribe transport for Messages.
type Channel interface {
	Publish(ctx context.Context, m Message) error
	// Subscribe registers h until ctx is done or the returned cancel is
	// called, whichever happens first.
	Subscribe(ctx context.Context, h Handler) (cancel func(), err error)
	Close() error
}

// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	shared "github.com/dmitrijs2005/teadiary/internal/models"
)

// Bin is one partition of the document store: a named JSON document that is
// overwritten as a whole.
type Bin struct {
	ID        string
	Name      string
	Content   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Bin) Metadata() shared.BinMetadata {
	return shared.BinMetadata{ID: b.ID, Name: b.Name, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
}

// Envelope wraps b for the wire. The content is omitted unless withRecord is
// set.
func (b *Bin) Envelope(withRecord bool) shared.BinEnvelope {
	env := shared.BinEnvelope{Metadata: b.Metadata()}
	if withRecord {
		env.Record = b.Content
	}
	return env
}

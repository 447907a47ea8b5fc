package models

import (
	"encoding/json"
	"time"
)

// BinMetadata describes one partition of the remote document store.
type BinMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BinEnvelope is the body of document store responses. Record holds the
// stored snapshot verbatim and is empty for metadata-only replies.
type BinEnvelope struct {
	Record   json.RawMessage `json:"record,omitempty"`
	Metadata BinMetadata     `json:"metadata"`
}

const maxBinName = 32

// BinName is the document store name of the partition with the given key.
func BinName(partitionKey string) string {
	name := "tea-app-" + partitionKey
	if len(name) > maxBinName {
		name = name[:maxBinName]
	}
	return name
}

// Package migrations embeds the SQL schema of the client key-value store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

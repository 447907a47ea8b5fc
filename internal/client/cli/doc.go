// Package cli provides the interactive tea diary command-line client.
//
// It wires configuration, the local store, the configured remote transport,
// the sync services and an interactive REPL. Typical flow: sign in, start the
// periodic sync and the connectivity watcher, then execute user commands.
//
// Key features:
//   - Register / Login / Logout
//   - Add, edit, delete, list and show tasting records
//   - Manual sync and sync status
//   - Statistics, export (JSON, CSV, HTML, share link) and import
//   - Storage and connectivity diagnostics
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

// Package config loads runtime configuration for the tea diary client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. JSON, YAML and TOML
//     are accepted; the format follows the file extension.
//  3. TEADIARY_* environment variables (TEADIARY_TRANSPORT,
//     TEADIARY_MASTER_KEY, ...), which override the file.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-d string   data directory
//	-t string   transport: local, http, grpc or s3
//	-u string   remote document store URL (http transport, websocket notifier)
//	-a string   address:port of the gRPC snapshot store
//	-k string   master key sent to the remote store
//	-n string   peer notifier: bus, dir, ws or none
//	-i int      sync interval (minutes)
//
// # File keys
//
// Durations accept Go duration strings or integer nanoseconds:
//
//	data_dir: ~/.config/teadiary
//	transport: http
//	remote_url: http://127.0.0.1:8080
//	master_key: change-me
//	sync_interval: 30m
//	reupload_after_sync: true
//	notify: dir
//	credential_scheme: argon2
package config

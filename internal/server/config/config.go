// Package config handles configuration for the server component,
// including defaults, file and environment overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the document store server.
//
// Fields:
//   - EndpointAddrHTTP: bind address of the REST and websocket front end.
//   - EndpointAddrGRPC: bind address of the SnapshotStore gRPC service.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps bins in memory.
//   - MasterKey: static secret clients present in X-Master-Key or exchange
//     for an access token. Do not use test defaults in prod.
//   - SecretKey: HMAC secret for signing JWTs (HS256).
//   - AccessTokenValidityDuration: access token lifetime.
//   - APIVersion: reported by /api/health.
type Config struct {
	EndpointAddrHTTP            string
	EndpointAddrGRPC            string
	DatabaseDSN                 string
	MasterKey                   string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	APIVersion                  string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.MasterKey = "masterKey"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.APIVersion = "1.0.0"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and the environment and finally from
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}

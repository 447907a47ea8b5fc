package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	NotifyBus  = "bus"
	NotifyDir  = "dir"
	NotifyWS   = "ws"
	NotifyNone = "none"
)

// Config holds runtime settings for the tea diary client.
//
// DBPath and LogFile may be left empty, in which case they are derived from
// DataDir (see DatabasePath and LogPath).
type Config struct {
	DataDir           string
	DBPath            string
	LogFile           string
	Transport         string
	RemoteURL         string
	MasterKey         string
	GRPCAddr          string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	SyncInterval      time.Duration
	ReuploadAfterSync bool
	Notify            string
	CredentialScheme  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.Transport = "local"
	c.RemoteURL = "http://127.0.0.1:8080"
	c.GRPCAddr = "127.0.0.1:50051"
	c.S3Bucket = "teadiary"
	c.S3Region = "us-east-1"
	c.SyncInterval = 30 * time.Minute
	c.ReuploadAfterSync = true
	c.Notify = NotifyDir
	c.CredentialScheme = "plaintext"
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "teadiary")
	}
	return ".teadiary"
}

// DatabasePath is the SQLite file backing the local store.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "teadiary.db")
}

// LogPath is the rotating log file of the interactive client.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, "client.log")
}

// PeersDir is where the directory notifier exchanges messages.
func (c *Config) PeersDir() string {
	return filepath.Join(c.DataDir, "peers")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file and environment (if present) and command-line flags (if
// present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "local", c.Transport)
	assert.Equal(t, 30*time.Minute, c.SyncInterval)
	assert.True(t, c.ReuploadAfterSync)
	assert.Equal(t, NotifyDir, c.Notify)
	assert.Equal(t, "plaintext", c.CredentialScheme)
	assert.NotEmpty(t, c.DataDir)
}

func TestDerivedPaths(t *testing.T) {
	c := Config{DataDir: "/var/tea"}
	assert.Equal(t, filepath.Join("/var/tea", "teadiary.db"), c.DatabasePath())
	assert.Equal(t, filepath.Join("/var/tea", "client.log"), c.LogPath())
	assert.Equal(t, filepath.Join("/var/tea", "peers"), c.PeersDir())

	c.DBPath, c.LogFile = "/tmp/x.db", "/tmp/x.log"
	assert.Equal(t, "/tmp/x.db", c.DatabasePath())
	assert.Equal(t, "/tmp/x.log", c.LogPath())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()

	require.NotNil(t, cfg)
	var want Config
	want.LoadDefaults()
	assert.Empty(t, cmp.Diff(&want, cfg))
}

func Test_parseFile_YAML(t *testing.T) {
	path := writeFile(t, "client.yaml", `
transport: http
remote_url: http://tea.example
master_key: k1
sync_interval: 90s
reupload_after_sync: false
notify: ws
`)
	withArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)

	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, "http://tea.example", cfg.RemoteURL)
	assert.Equal(t, "k1", cfg.MasterKey)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.False(t, cfg.ReuploadAfterSync)
	assert.Equal(t, NotifyWS, cfg.Notify)
	assert.Equal(t, "127.0.0.1:50051", cfg.GRPCAddr, "unset keys keep defaults")
}

func Test_parseFile_JSONAndEnv(t *testing.T) {
	path := writeFile(t, "client.json", `{"transport": "s3", "s3_bucket": "b1", "sync_interval": 60000000000}`)
	withArgs(t, "-config", path)
	t.Setenv("TEADIARY_S3_BUCKET", "from-env")
	t.Setenv("TEADIARY_CREDENTIAL_SCHEME", "argon2")

	cfg := &Config{}
	parseFile(cfg)

	assert.Equal(t, "s3", cfg.Transport)
	assert.Equal(t, "from-env", cfg.S3Bucket)
	assert.Equal(t, "argon2", cfg.CredentialScheme)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
}

func Test_parseFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		withArgs(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("bad duration", func(t *testing.T) {
		withArgs(t, "-c", writeFile(t, "bad.yaml", "sync_interval: soon\n"))
		require.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("invalid JSON", func(t *testing.T) {
		withArgs(t, "-c", writeFile(t, "bad.json", `{ this is not valid json`))
		require.Panics(t, func() { parseFile(&Config{}) })
	})
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"-d", "/data", "-t", "grpc", "-u", "http://h", "-a", "h:1", "-k", "key", "-n", "none", "-i", "5"},
			expected: &Config{
				DataDir: "/data", Transport: "grpc", RemoteURL: "http://h", GRPCAddr: "h:1",
				MasterKey: "key", Notify: "none", SyncInterval: 5 * time.Minute,
			},
		},
		{
			name:     "interval untouched without -i",
			args:     []string{"-t", "http"},
			expected: &Config{Transport: "http", SyncInterval: 90 * time.Second},
		},
		{name: "incorrect interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			cfg := &Config{SyncInterval: 90 * time.Second}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}
			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "transport: s3\ns3_bucket: tea\nsync_interval: 5m\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Transport)
	assert.Equal(t, "tea", cfg.S3Bucket)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, NotifyDir, cfg.Notify, "defaults survive")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "sync_interval: soon\n")
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/dmitrijs2005/teadiary/internal/flagx"
	"github.com/dmitrijs2005/teadiary/internal/timex"
)

const envPrefix = "TEADIARY"

// newViper returns a viper instance reading TEADIARY_* variables and, when
// path is not empty, the given config file.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// parseFile overlays cfg with values from the config file named by -c or
// -config and from the environment. Panics on read, parse or duration errors.
func parseFile(cfg *Config) {
	v, err := newViper(flagx.ConfigFileFlag(os.Args[1:]))
	if err != nil {
		panic(err)
	}
	if err := apply(cfg, v); err != nil {
		panic(err)
	}
}

// LoadFile returns the defaults overlaid with the config file at path (if
// not empty) and the environment. It is meant for tools that parse their
// own flags.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	if err := apply(cfg, v); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies the keys that are set in v.
func apply(cfg *Config, v *viper.Viper) error {
	strs := map[string]*string{
		"data_dir":          &cfg.DataDir,
		"db_path":           &cfg.DBPath,
		"log_file":          &cfg.LogFile,
		"transport":         &cfg.Transport,
		"remote_url":        &cfg.RemoteURL,
		"master_key":        &cfg.MasterKey,
		"grpc_addr":         &cfg.GRPCAddr,
		"s3_bucket":         &cfg.S3Bucket,
		"s3_region":         &cfg.S3Region,
		"s3_endpoint":       &cfg.S3Endpoint,
		"s3_access_key":     &cfg.S3AccessKey,
		"s3_secret_key":     &cfg.S3SecretKey,
		"notify":            &cfg.Notify,
		"credential_scheme": &cfg.CredentialScheme,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("sync_interval") {
		d, err := timex.ParseDuration(v.GetString("sync_interval"))
		if err != nil {
			return err
		}
		cfg.SyncInterval = d
	}
	if v.IsSet("reupload_after_sync") {
		cfg.ReuploadAfterSync = v.GetBool("reupload_after_sync")
	}
	return nil
}

package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/dmitrijs2005/teadiary/internal/flagx"
	"github.com/dmitrijs2005/teadiary/internal/timex"
)

const envPrefix = "TEADIARY_SERVER"

// parseFile overlays config with values from the file named by -c or
// -config (JSON, YAML or TOML) and from TEADIARY_SERVER_* variables.
// Keys that are not set leave the current value alone. Panics on read,
// parse or duration errors.
func parseFile(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path := flagx.ConfigFileFlag(os.Args[1:]); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	}

	for key, dst := range map[string]*string{
		"endpoint_addr_http": &config.EndpointAddrHTTP,
		"endpoint_addr_grpc": &config.EndpointAddrGRPC,
		"database_dsn":       &config.DatabaseDSN,
		"master_key":         &config.MasterKey,
		"secret_key":         &config.SecretKey,
		"api_version":        &config.APIVersion,
	} {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("access_token_validity_duration") {
		d, err := timex.ParseDuration(v.GetString("access_token_validity_duration"))
		if err != nil {
			panic(err)
		}
		config.AccessTokenValidityDuration = d
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only the flags listed in the package documentation are considered;
// flagx.FilterArgs drops the rest so other components can parse their own.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-t", "-u", "-a", "-k", "-n", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport (local, http, grpc, s3)")
	fs.StringVar(&cfg.RemoteURL, "u", cfg.RemoteURL, "remote document store URL")
	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "address and port of the gRPC snapshot store")
	fs.StringVar(&cfg.MasterKey, "k", cfg.MasterKey, "master key for the remote store")
	fs.StringVar(&cfg.Notify, "n", cfg.Notify, "peer notifier (bus, dir, ws, none)")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Minutes()), "sync interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.SyncInterval = time.Duration(*syncInterval) * time.Minute
		}
	})
}

package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/legalassist/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   backend API base URL
//	-d string   local storage file
//	-s string   session store driver (memory|redis)
//	-l string   log level
//
// Only these flags are looked at; everything else in args belongs to other
// loaders and is filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-l"})

	fs := flag.NewFlagSet("legalassist", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "backend API base URL")
	fs.StringVar(&cfg.StoragePath, "d", cfg.StoragePath, "local storage file")
	fs.StringVar(&cfg.SessionStore, "s", cfg.SessionStore, "session store driver (memory|redis)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")

	return fs.Parse(args)
}

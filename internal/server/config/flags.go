package config

import (
	"flag"
	"os"

	"github.com/dpavlenko/cryptoquest/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":1965")
//	-d string   encrypted data file path
//	-k string   master key file path
//	-u string   secret link URL
//	-m string   final challenge message
//	-n string   default name for unnamed anonymous players
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-u", "-m", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DataFile, "d", config.DataFile, "encrypted data file path")
	fs.StringVar(&config.MasterKeyFile, "k", config.MasterKeyFile, "master key file path")
	fs.StringVar(&config.SecretURL, "u", config.SecretURL, "secret link URL")
	fs.StringVar(&config.FinalMessage, "m", config.FinalMessage, "final challenge message")
	fs.StringVar(&config.DefaultName, "n", config.DefaultName, "default anonymous player name")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

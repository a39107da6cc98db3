// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the CryptoQuest server.
//
// Fields:
//   - ListenAddr: bind address for the text-protocol listener.
//   - DataFile: path of the encrypted user database blob.
//   - MasterKeyFile: path of the 32-byte master key. Created on first run;
//     losing it makes all prior data permanently unrecoverable.
//   - SecretURL: the logical secret link revealed by the AES puzzle.
//   - FinalMessage: plaintext encrypted under each player's public key for
//     the final challenge.
//   - DefaultName: name assigned to anonymous players who supply none.
type Config struct {
	ListenAddr    string
	DataFile      string
	MasterKeyFile string
	SecretURL     string
	FinalMessage  string
	DefaultName   string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":1965"
	c.DataFile = "data/users.json.enc"
	c.MasterKeyFile = "keys/master.key"
	c.SecretURL = "gemini://localhost/final"
	c.FinalMessage = "FLAG{cryptoquest_demo}"
	c.DefaultName = "guest"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"encoding/json"
	"os"

	"github.com/dpavlenko/cryptoquest/internal/flagx"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, non-empty fields are copied
// into the runtime Config.
type JsonConfig struct {
	ListenAddr    string `json:"listen_addr"`
	DataFile      string `json:"data_file"`
	MasterKeyFile string `json:"master_key_file"`
	SecretURL     string `json:"secret_url"`
	FinalMessage  string `json:"final_message"`
	DefaultName   string `json:"default_name"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; if neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics. Fields absent from the file keep their
// current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != "" {
		config.ListenAddr = c.ListenAddr
	}
	if c.DataFile != "" {
		config.DataFile = c.DataFile
	}
	if c.MasterKeyFile != "" {
		config.MasterKeyFile = c.MasterKeyFile
	}
	if c.SecretURL != "" {
		config.SecretURL = c.SecretURL
	}
	if c.FinalMessage != "" {
		config.FinalMessage = c.FinalMessage
	}
	if c.DefaultName != "" {
		config.DefaultName = c.DefaultName
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJson_OverlaysNonEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen_addr": ":2965",
		"data_file": "/var/lib/cryptoquest/users.json.enc"
	}`), 0o600))

	oldArgs := os.Args
	os.Args = []string{"server", "-c", path}
	defer func() { os.Args = oldArgs }()

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, ":2965", c.ListenAddr)
	assert.Equal(t, "/var/lib/cryptoquest/users.json.enc", c.DataFile)
	// Fields absent from the JSON keep their defaults.
	assert.Equal(t, "keys/master.key", c.MasterKeyFile)
	assert.Equal(t, "guest", c.DefaultName)
}

func TestParseJson_NoFlagIsNoop(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"server"}
	defer func() { os.Args = oldArgs }()

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, ":1965", c.ListenAddr)
}

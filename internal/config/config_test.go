package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telaak/serial-gsm-rest/internal/constants"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GSMTTY", "GSM_BAUD_RATE", "SQLITE_PATH", "PORT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{
		"serial": {"device": "/dev/ttyUSB0", "baudRate": 115200},
		"database": {"path": "messages.db"},
		"server": {"port": 8080}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "messages.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{
		"serial": {"device": "/dev/ttyUSB0"},
		"database": {"path": "messages.db"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultBaudRate, cfg.Serial.BaudRate)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "serial-gsm-rest", cfg.Tracing.ServiceName)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GSMTTY", "/dev/ttyACM1")
	t.Setenv("GSM_BAUD_RATE", "19200")
	t.Setenv("SQLITE_PATH", "override.db")
	t.Setenv("PORT", "5000")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfigFile(t, `{
		"serial": {"device": "/dev/ttyUSB0", "baudRate": 9600},
		"database": {"path": "messages.db"},
		"server": {"port": 4000}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Device)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
	assert.Equal(t, "override.db", cfg.Database.Path)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvironmentOnly(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GSMTTY", "/dev/ttyUSB0")
	t.Setenv("SQLITE_PATH", "messages.db")

	// No config file at all.
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, "messages.db", cfg.Database.Path)
}

func TestLoadConfigMissingDevice(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{"database": {"path": "messages.db"}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDevice)
}

func TestLoadConfigMissingDatabasePath(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{"serial": {"device": "/dev/ttyUSB0"}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigInvalidPort(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{
		"serial": {"device": "/dev/ttyUSB0"},
		"database": {"path": "messages.db"},
		"server": {"port": 70000}
	}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsTraversalDatabasePath(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `{
		"serial": {"device": "/dev/ttyUSB0"},
		"database": {"path": "../../etc/passwd"}
	}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/telaak/serial-gsm-rest/internal/constants"
	"github.com/telaak/serial-gsm-rest/internal/models"
	"github.com/telaak/serial-gsm-rest/internal/security"
)

var (
	ErrMissingDevice = models.ConfigError{Message: "missing serial device path"}
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON configuration file, loads a .env file if one is
// present, and applies environment overrides. Configuration is read once at
// startup.
func LoadConfig(path string) (*models.Config, error) {
	// A missing .env is fine; explicit environment variables still apply.
	_ = godotenv.Load()

	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	var config models.Config
	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// No config file: environment variables alone can carry the
		// required settings.
	} else if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("GSMTTY"); v != "" {
		c.Serial.Device = v
	}
	if v := os.Getenv("GSM_BAUD_RATE"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil && baud > 0 {
			c.Serial.BaudRate = baud
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func applyDefaults(c *models.Config) {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = constants.DefaultBaudRate
	}
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "serial-gsm-rest"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func validate(c *models.Config) error {
	if c.Serial.Device == "" {
		return ErrMissingDevice
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if err := security.ValidateFilePath(c.Database.Path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
	}
	if c.Serial.BaudRate < 0 {
		return models.ConfigError{Message: fmt.Sprintf("invalid baud rate: %d", c.Serial.BaudRate)}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}
	return nil
}

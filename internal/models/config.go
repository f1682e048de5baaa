package models

import "fmt"

// ConfigError represents a configuration validation error
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Message)
}

// SerialConfig describes the modem's serial connection.
type SerialConfig struct {
	Device   string `json:"device"`
	BaudRate int    `json:"baudRate"`
}

// DatabaseConfig describes the message store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig describes the HTTP front end.
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig contains the OpenTelemetry settings. Tracing is off unless
// explicitly enabled.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the full application configuration, read once at startup.
type Config struct {
	Serial   SerialConfig   `json:"serial"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	LogLevel string         `json:"logLevel"`
	Tracing  TracingConfig  `json:"tracing"`
}

package config

// Config represents the main skycast configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Dispatch
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Weather backend
	Weather WeatherConfig `json:"weather" mapstructure:"weather"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds the listener and admission-control settings
type ServerConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	MaxSessions     int    `json:"max_sessions" mapstructure:"max_sessions"`
	MaxMessageBytes int    `json:"max_message_bytes" mapstructure:"max_message_bytes"`
}

// DispatchConfig holds per-invocation limits
type DispatchConfig struct {
	TimeBudget     int `json:"time_budget" mapstructure:"time_budget"` // seconds
	MaxResultBytes int `json:"max_result_bytes" mapstructure:"max_result_bytes"`
}

// WeatherConfig holds weather data source configuration
type WeatherConfig struct {
	Key     string `json:"key" mapstructure:"key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	MaxSize int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge  int    `json:"max_age" mapstructure:"max_age"`   // days
}

// DefaultConfig returns a configuration with documented defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			MaxSessions:     64,
			MaxMessageBytes: 64 * 1024,
		},
		Dispatch: DispatchConfig{
			TimeBudget:     30,
			MaxResultBytes: 64 * 1024,
		},
		Weather: WeatherConfig{
			Timeout: 10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxSize: 100,
			MaxAge:  7,
		},
	}
}

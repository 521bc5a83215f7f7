package config

import "fmt"

// Validate performs fail-fast validation of a loaded configuration.
// The process must refuse to start on an out-of-range value rather than
// discover it during steady-state operation.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxSessions < 1 {
		return fmt.Errorf("server.max_sessions must be at least 1, got %d", cfg.Server.MaxSessions)
	}
	if cfg.Server.MaxMessageBytes < 1 {
		return fmt.Errorf("server.max_message_bytes must be positive, got %d", cfg.Server.MaxMessageBytes)
	}
	if cfg.Dispatch.TimeBudget < 1 {
		return fmt.Errorf("dispatch.time_budget must be at least 1 second, got %d", cfg.Dispatch.TimeBudget)
	}
	if cfg.Dispatch.MaxResultBytes < 0 {
		return fmt.Errorf("dispatch.max_result_bytes cannot be negative, got %d", cfg.Dispatch.MaxResultBytes)
	}
	if cfg.Weather.Key == "" {
		return fmt.Errorf("weather.key is required")
	}
	if cfg.Weather.Timeout < 1 {
		return fmt.Errorf("weather.timeout must be at least 1 second, got %d", cfg.Weather.Timeout)
	}
	return nil
}

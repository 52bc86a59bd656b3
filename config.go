package evproc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds processor settings that are commonly supplied by the
// environment. Every field maps to an EVPROC_-prefixed variable.
type Config struct {
	// Timeout bounds each dispatch (EVPROC_TIMEOUT, e.g. "30s"). Zero disables it.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"0s"`

	// LogLevel is the minimum level logged by the dispatch logger
	// (EVPROC_LOG_LEVEL: debug, info, warn, error).
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat selects the log encoding (EVPROC_LOG_FORMAT: text or json).
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// LogFile, when set, sends logs to a size-rotated file instead of stderr
	// (EVPROC_LOG_FILE).
	LogFile string `env:"LOG_FILE"`

	// LogMaxSizeMB is the size at which LogFile is rotated (EVPROC_LOG_MAX_SIZE_MB).
	LogMaxSizeMB int `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
}

// LoadConfig reads a Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "EVPROC_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("log max size must be positive: %d", c.LogMaxSizeMB)
	}
	return nil
}

// Options converts the config into processor options. When logger is
// non-nil, dispatch logging is enabled through WithLogger.
func (c Config) Options(logger *slog.Logger) []Option {
	var opts []Option
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts
}

// Package dbconnect carries process configuration and logger setup
// shared by the CLI and by embedders of the library packages.
package dbconnect

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"dbconnect/pkg"
)

const defaultAppName = "dbconnect"

type Config struct {
	AppName   string
	LogLevel  string
	ConfigDir string
}

// LoadConfig reads process configuration from an optional .env file and
// the environment. DBCONNECT_CONFIG_DIR overrides the platform config
// directory.
func LoadConfig() (Config, error) {
	// A missing .env is fine; explicit settings come from the environment.
	_ = godotenv.Load()

	cfg := Config{
		AppName:   getEnv("DBCONNECT_APP_NAME", defaultAppName),
		LogLevel:  getEnv("DBCONNECT_LOG_LEVEL", "warn"),
		ConfigDir: os.Getenv("DBCONNECT_CONFIG_DIR"),
	}
	if cfg.ConfigDir == "" {
		dir, err := pkg.UserConfigDir(cfg.AppName)
		if err != nil {
			return Config{}, fmt.Errorf("resolving config directory: %w", err)
		}
		cfg.ConfigDir = dir
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// NewLogger builds the process logger writing human-readable output to
// stderr, keeping stdout free for query results.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.WarnLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

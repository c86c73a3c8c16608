// Package config gathers process configuration from the environment.
// An optional .env file is loaded first; explicit environment variables
// always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// DBPath is the sqlite database file.
	DBPath string
	// ReloadRetry is the pause between active-draft load attempts while
	// waiting at startup.
	ReloadRetry time.Duration
	// RotationHour and RotationMinute give the local wall-clock time of
	// the daily draft rotation.
	RotationHour   int
	RotationMinute int
	// AdminID is recorded on drafts added through the CLI.
	AdminID string
}

// Load reads configuration from the environment, after loading the
// given .env file if it exists. An empty path skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Config{
		DBPath:  getEnv("READQUIZ_DB", "readquiz.db"),
		AdminID: getEnv("READQUIZ_ADMIN_ID", "local"),
	}

	var err error
	if cfg.ReloadRetry, err = getDuration("READQUIZ_RELOAD_RETRY", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RotationHour, err = getInt("READQUIZ_ROTATION_HOUR", 0, 0, 23); err != nil {
		return Config{}, err
	}
	if cfg.RotationMinute, err = getInt("READQUIZ_ROTATION_MINUTE", 0, 0, 59); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}

func getInt(key string, fallback, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s: %d outside [%d, %d]", key, n, lo, hi)
	}
	return n, nil
}

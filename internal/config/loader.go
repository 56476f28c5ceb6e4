package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/readyalert/readyalert.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "readyalert", "readyalert.yaml"))
	}

	paths = append(paths, "readyalert.yaml")

	if envPath := os.Getenv("READYALERT_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/readyalert/readyalert.yaml < ~/.config/readyalert/readyalert.yaml < ./readyalert.yaml < $READYALERT_CONFIG
func Load() (*Config, error) {
	loadDotEnv(".env")

	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv(".env")

	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv populates the process environment from a .env file.
// Variables already set in the environment win.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	setFromEnv(&cfg.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	setFromEnv(&cfg.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	setFromEnv(&cfg.SMS.FromNumber, "TWILIO_PHONE_NUMBER")
	setFromEnv(&cfg.SMS.DemoPhone, "DEMO_FAMILY_PHONE")
	setFromEnv(&cfg.SMS.DeliveryMode, "READYALERT_SMS_DELIVERY_MODE")

	setFromEnv(&cfg.Push.VAPIDPublicKey, "NEXT_PUBLIC_VAPID_PUBLIC_KEY")
	setFromEnv(&cfg.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setFromEnv(&cfg.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setFromEnv(&cfg.Push.Subject, "VAPID_SUBJECT")

	setFromEnv(&cfg.Tunnel.AuthToken, "READYALERT_NGROK_AUTHTOKEN")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Location resolves the configured facility timezone, falling back to UTC.
func (c ServerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.Server.LogLevel) {
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error, got %q", cfg.Server.LogLevel)
	}

	if !slices.Contains([]string{DeliveryReal, DeliverySimulated, DeliveryDisabled}, cfg.SMS.DeliveryMode) {
		return fmt.Errorf("sms.delivery_mode must be one of real, simulated, disabled, got %q", cfg.SMS.DeliveryMode)
	}

	if cfg.SMS.Timeout <= 0 {
		return fmt.Errorf("sms.timeout must be positive")
	}

	if !slices.Contains([]string{"very-low", "low", "normal", "high"}, cfg.Push.Urgency) {
		return fmt.Errorf("push.urgency must be one of very-low, low, normal, high, got %q", cfg.Push.Urgency)
	}

	if cfg.Push.Timeout <= 0 {
		return fmt.Errorf("push.timeout must be positive")
	}

	if cfg.Push.MaxConcurrent < 1 {
		return fmt.Errorf("push.max_concurrent must be at least 1")
	}

	if cfg.Watch.DedupeRetention < cfg.Watch.TerminalRetention {
		return fmt.Errorf("watch.dedupe_retention must not be shorter than watch.terminal_retention")
	}

	if cfg.Tunnel.Enabled && cfg.Tunnel.AuthToken == "" {
		return fmt.Errorf("tunnel.authtoken is required when the tunnel is enabled (or set READYALERT_NGROK_AUTHTOKEN)")
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	return nil
}

package config

import "time"

// Config is the root configuration for readyalert.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	SMS         SMSConfig         `yaml:"sms"`
	Push        PushConfig        `yaml:"push"`
	Watch       WatchConfig       `yaml:"watch"`
	Alert       AlertConfig       `yaml:"alert"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Tunnel      TunnelConfig      `yaml:"tunnel"`
	MCP         MCPConfig         `yaml:"mcp"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	// Timezone is the facility's local zone; "today" and displayed pickup
	// times are computed in it.
	Timezone string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	SeedDemo bool   `yaml:"seed_demo"`
}

// Delivery modes for the SMS gateway.
const (
	DeliveryReal      = "real"
	DeliverySimulated = "simulated"
	DeliveryDisabled  = "disabled"
)

type SMSConfig struct {
	AccountSID   string        `yaml:"account_sid"`
	AuthToken    string        `yaml:"auth_token"`
	FromNumber   string        `yaml:"from_number"`
	DeliveryMode string        `yaml:"delivery_mode"`
	CountryCode  string        `yaml:"country_code"`
	DemoPhone    string        `yaml:"demo_phone"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Configured reports whether provider credentials are present.
func (c SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type PushConfig struct {
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
	Subject         string        `yaml:"subject"`
	TTL             time.Duration `yaml:"ttl"`
	Urgency         string        `yaml:"urgency"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

// Configured reports whether a VAPID key pair is present.
func (c PushConfig) Configured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

type WatchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ServerURL         string        `yaml:"server_url"`
	DedupeRetention   time.Duration `yaml:"dedupe_retention"`
	TerminalRetention time.Duration `yaml:"terminal_retention"`
	SignalHold        time.Duration `yaml:"signal_hold"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

type AlertConfig struct {
	Toast          bool          `yaml:"toast"`
	Sound          bool          `yaml:"sound"`
	DesktopCommand string        `yaml:"desktop_command"`
	DesktopTimeout time.Duration `yaml:"desktop_timeout"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

type MaintenanceConfig struct {
	KeepaliveSchedule string `yaml:"keepalive_schedule"`
	DemoResetSchedule string `yaml:"demo_reset_schedule"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8430,
			LogLevel: "info",
			Timezone: "America/New_York",
		},
		Database: DatabaseConfig{
			Path: "~/.config/readyalert/readyalert.db",
		},
		SMS: SMSConfig{
			DeliveryMode: DeliverySimulated,
			CountryCode:  "1",
			Timeout:      10 * time.Second,
		},
		Push: PushConfig{
			Subject:       "mailto:admin@facility.local",
			TTL:           time.Hour,
			Urgency:       "high",
			Timeout:       10 * time.Second,
			MaxConcurrent: 16,
		},
		Watch: WatchConfig{
			ServerURL:         "http://127.0.0.1:8430",
			DedupeRetention:   36 * time.Hour,
			TerminalRetention: 2 * time.Hour,
			SignalHold:        100 * time.Millisecond,
			ReconnectDelay:    3 * time.Second,
		},
		Alert: AlertConfig{
			Toast:          true,
			Sound:          true,
			DesktopTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
			Burst:             60,
		},
		Maintenance: MaintenanceConfig{
			KeepaliveSchedule: "@every 10m",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}

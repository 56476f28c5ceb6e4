package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "readyalert.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))
	return tmpFile
}

func TestDefaults_SetsExpectedValues(t *testing.T) {
	t.Parallel()

	cfg := Defaults()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8430, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, DeliverySimulated, cfg.SMS.DeliveryMode)
	assert.Equal(t, "1", cfg.SMS.CountryCode)
	assert.Equal(t, 10*time.Second, cfg.SMS.Timeout)
	assert.Equal(t, time.Hour, cfg.Push.TTL)
	assert.Equal(t, "high", cfg.Push.Urgency)
	assert.Equal(t, 36*time.Hour, cfg.Watch.DedupeRetention)
	assert.True(t, cfg.MCP.Enabled)
}

func TestLoadFromFile_ParsesYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9000
  log_level: "debug"
  timezone: "UTC"

sms:
  delivery_mode: "real"
  from_number: "+15550001111"
  timeout: 5s

push:
  ttl: 30m
  urgency: "normal"
  max_concurrent: 4

watch:
  enabled: true
  dedupe_retention: 48h
  terminal_retention: 1h

alert:
  sound: false
  desktop_command: "notify-send"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, DeliveryReal, cfg.SMS.DeliveryMode)
	assert.Equal(t, "+15550001111", cfg.SMS.FromNumber)
	assert.Equal(t, 5*time.Second, cfg.SMS.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Push.TTL)
	assert.Equal(t, "normal", cfg.Push.Urgency)
	assert.Equal(t, 4, cfg.Push.MaxConcurrent)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.Watch.DedupeRetention)
	assert.False(t, cfg.Alert.Sound)
	assert.Equal(t, "notify-send", cfg.Alert.DesktopCommand)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("READYALERT_TEST_SECRET", "super-secret-value")

	path := writeConfig(t, `
push:
  vapid_private_key: "${READYALERT_TEST_SECRET}"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "super-secret-value", cfg.Push.VAPIDPrivateKey)
}

func TestLoadFromFile_EnvOverridesProviderCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550009999")
	t.Setenv("DEMO_FAMILY_PHONE", "5551234567")
	t.Setenv("VAPID_SUBJECT", "mailto:desk@example.org")

	path := writeConfig(t, `
sms:
  account_sid: "from-yaml"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "AC123", cfg.SMS.AccountSID, "environment wins over YAML")
	assert.True(t, cfg.SMS.Configured())
	assert.Equal(t, "5551234567", cfg.SMS.DemoPhone)
	assert.Equal(t, "mailto:desk@example.org", cfg.Push.Subject)
}

func TestLoadFromFile_RejectsInvalidPort(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "server:\n  port: 99999\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadFromFile_RejectsUnknownDeliveryMode(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "sms:\n  delivery_mode: carrier-pigeon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery_mode")
}

func TestLoadFromFile_RejectsUnknownUrgency(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "push:\n  urgency: asap\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urgency")
}

func TestLoadFromFile_RejectsMaxConcurrentZero(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "push:\n  max_concurrent: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestLoadFromFile_RejectsRetentionInversion(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "watch:\n  dedupe_retention: 1h\n  terminal_retention: 2h\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention")
}

func TestLoadFromFile_RejectsTunnelWithoutToken(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "tunnel:\n  enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authtoken")
}

func TestLoadFromFile_NonexistentFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile("/tmp/readyalert-nonexistent-config-file.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8430, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFromFile_InvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(writeConfig(t, "{{invalid yaml:::"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML")
}

func TestLoadFromFile_PartialOverride_KeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, "server:\n  port: 9999\n"))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "default host should be preserved")
	assert.Equal(t, 16, cfg.Push.MaxConcurrent, "default max_concurrent should be preserved")
}

func TestExpandHome_ReplacesLeadingTilde(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "some/path"), ExpandHome("~/some/path"))
}

func TestExpandHome_LeavesAbsolutePathsUnchanged(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
}

func TestServerConfig_Location_FallsBackToUTC(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.UTC, ServerConfig{Timezone: "Nowhere/Atlantis"}.Location())
	assert.Equal(t, time.UTC, ServerConfig{}.Location())
}

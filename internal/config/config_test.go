package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Sync.DefaultDays)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Retry.InitialDelayMS)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Empty(t, cfg.Institutions)
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
log:
  level: debug
  format: json
sync:
  default_days: 90
institutions:
  - name: cal
    type: credit_card
    source:
      kind: file
      path: /data/cal
    credentials:
      - label: main
        username: user1
      - label: partner
        username: user2
  - name: meitav
    type: broker
    source:
      path: /data/meitav.json
    credentials:
      - username: user1
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 90, cfg.Sync.DefaultDays)
	require.Len(t, cfg.Institutions, 2)

	cal, ok := cfg.Institution(models.InstitutionCal)
	require.True(t, ok)
	assert.Equal(t, "credit_card", cal.Type)
	assert.Equal(t, "file", cal.Source.Kind)
	require.Len(t, cal.Credentials, 2)
	assert.Equal(t, "partner", cal.Credentials[1].Label)

	_, ok = cfg.Institution(models.InstitutionMax)
	assert.False(t, ok)
}

func TestLoadBrokenDiscoveredFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("institutions:\n  - [unclosed\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// A malformed discovered file degrades to defaults instead of failing;
	// only an explicitly named file is fatal.
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: chatty\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"retry attempts out of range", "retry:\n  max_attempts: 0\n"},
		{"unknown institution", "institutions:\n  - name: hapoalim\n    type: credit_card\n    credentials:\n      - username: u\n"},
		{"bad sync type", "institutions:\n  - name: cal\n    type: mortgage\n    credentials:\n      - username: u\n"},
		{"no credentials", "institutions:\n  - name: cal\n    type: credit_card\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestConfigureLogging(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	log := config.ConfigureLogging(cfg)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	// Unparsable level degrades to info rather than failing.
	cfg.Log.Level = "chatty"
	cfg.Log.Format = "text"
	log = config.ConfigureLogging(cfg)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

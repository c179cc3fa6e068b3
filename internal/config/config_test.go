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
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "token-from-env")

	path := writeConfig(t, `
telegram:
  bot_token: "${TEST_BOT_TOKEN}"
database:
  path: "`+filepath.Join(t.TempDir(), "db", "test.db")+`"
booking:
  horizon_days: 14
  open_hour: 8
  close_hour: 20
  slot_minutes: 30
reminders:
  interval_minutes: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "token-from-env", cfg.Telegram.BotToken)
	assert.Equal(t, 14, cfg.HorizonDays())
	assert.Equal(t, 8, cfg.OpenHour())
	assert.Equal(t, 20, cfg.CloseHour())
	assert.Equal(t, 30, cfg.SlotMinutes())
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: "t"
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.HorizonDays())
	assert.Equal(t, 9, cfg.OpenHour())
	assert.Equal(t, 17, cfg.CloseHour())
	assert.Equal(t, 60, cfg.SlotMinutes())
	assert.Equal(t, 30*time.Minute, cfg.ReminderInterval())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

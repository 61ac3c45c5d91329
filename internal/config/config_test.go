package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "dropbox"

[paths]
data_dir = "` + dir + `"

[gemini]
api_key = "file-key"
model = "gemini-2.5-pro"

[dropbox]
app_key = "k"
app_secret = "s"
poll_interval_seconds = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, ModeDropbox, cfg.Mode)
	assert.Equal(t, "file-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 10, cfg.PollInterval())

	// Derived paths hang off data_dir.
	assert.Equal(t, filepath.Join(dir, "Inbox"), cfg.Paths.InboxDir)
	assert.Equal(t, filepath.Join(dir, "processed.db"), cfg.Paths.LedgerPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-wins")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gemini]\napi_key = \"file-key\"\n"), 0o644))

	cfg, _, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-wins", cfg.Gemini.APIKey)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "ftp"
	cfg.Gemini.APIKey = "k"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "mode")
}

func TestValidateDropboxModeNeedsAppKeys(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeDropbox
	cfg.Gemini.APIKey = "k"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "dropbox.app_key")

	cfg.Dropbox.AppKey = "a"
	cfg.Dropbox.AppSecret = "b"
	assert.NoError(t, cfg.Validate())
}

func TestValidateEnabledTelegramNeedsSettings(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "k"
	cfg.Notifications.Telegram.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "telegram")
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = dir
	require.NoError(t, cfg.normalize())
	require.NoError(t, cfg.EnsureDirectories())

	for _, sub := range []string{"Inbox", "Outbox", "Archive", "temp", "Logs", "state"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
	info, err := os.Stat(filepath.Join(dir, "tokens"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, CreateSample(path))

	t.Setenv("GEMINI_API_KEY", "k")
	_, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
}

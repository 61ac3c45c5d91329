package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Mode selects which job sources the daemon runs.
const (
	ModeLocal   = "local"
	ModeDropbox = "dropbox"
)

// Paths contains directory configuration. All directories except DataDir
// are derived from DataDir when left empty.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	InboxDir   string `toml:"inbox_dir"`
	OutboxDir  string `toml:"outbox_dir"`
	ArchiveDir string `toml:"archive_dir"`
	TempDir    string `toml:"temp_dir"`
	LogDir     string `toml:"log_dir"`
	TokensDir  string `toml:"tokens_dir"`
	StateDir   string `toml:"state_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Gemini contains summarization service settings.
type Gemini struct {
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	MaxRetries        int    `toml:"max_retries"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// Whisper contains fallback transcription settings.
type Whisper struct {
	Binary string `toml:"binary"`
	Model  string `toml:"model"`
}

// Download contains yt-dlp settings.
type Download struct {
	Binary           string   `toml:"binary"`
	AudioQuality     int      `toml:"audio_quality"`
	CaptionLanguages []string `toml:"caption_languages"`
	Retries          int      `toml:"retries"`
}

// Dropbox contains remote watcher and OAuth settings.
type Dropbox struct {
	AppKey              string   `toml:"app_key"`
	AppSecret           string   `toml:"app_secret"`
	RedirectURI         string   `toml:"redirect_uri"`
	AllowedAccounts     []string `toml:"allowed_accounts"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	OAuthBind           string   `toml:"oauth_bind"`
}

// Telegram contains chat notification settings.
type Telegram struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// Email contains SMTP notification settings.
type Email struct {
	Enabled  bool   `toml:"enabled"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	To       string `toml:"to"`
}

// Notifications groups the notification providers.
type Notifications struct {
	Telegram Telegram `toml:"telegram"`
	Email    Email    `toml:"email"`
}

// Workflow contains timing settings for the watchers.
type Workflow struct {
	DebounceMilliseconds int `toml:"debounce_milliseconds"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for VoxBox.
type Config struct {
	Mode          string        `toml:"mode"`
	Paths         Paths         `toml:"paths"`
	Gemini        Gemini        `toml:"gemini"`
	Whisper       Whisper       `toml:"whisper"`
	Download      Download      `toml:"download"`
	Dropbox       Dropbox       `toml:"dropbox"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voxbox/config.toml")
}

// Load locates, parses, and validates a configuration file. Secrets may be
// overridden from the environment (a .env in the working directory is
// honored); the returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Best-effort: secrets commonly live in a .env next to the service.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnv overlays secret values from the environment onto the config.
func (c *Config) applyEnv() {
	overlay := func(dst *string, keys ...string) {
		for _, key := range keys {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				*dst = value
				return
			}
		}
	}
	overlay(&c.Gemini.APIKey, "GEMINI_API_KEY")
	overlay(&c.Dropbox.AppKey, "DROPBOX_APP_KEY")
	overlay(&c.Dropbox.AppSecret, "DROPBOX_APP_SECRET")
	overlay(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overlay(&c.Notifications.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	overlay(&c.Notifications.Email.Password, "EMAIL_PASSWORD")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("voxbox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.InboxDir,
		c.Paths.OutboxDir,
		c.Paths.ArchiveDir,
		c.Paths.TempDir,
		c.Paths.LogDir,
		c.Paths.StateDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TokensDir) != "" {
		if err := os.MkdirAll(c.Paths.TokensDir, 0o700); err != nil {
			return fmt.Errorf("create tokens directory %q: %w", c.Paths.TokensDir, err)
		}
	}
	return nil
}

// PollInterval returns the Dropbox poll interval.
func (c *Config) PollInterval() int {
	if c.Dropbox.PollIntervalSeconds <= 0 {
		return 30
	}
	return c.Dropbox.PollIntervalSeconds
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

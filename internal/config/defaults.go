package config

// Default returns the baseline configuration before file and environment
// values are applied.
func Default() Config {
	return Config{
		Mode: ModeLocal,
		Paths: Paths{
			DataDir: "~/.local/share/voxbox",
		},
		Gemini: Gemini{
			Model:             "gemini-2.5-flash",
			MaxRetries:        3,
			RetryDelaySeconds: 2,
		},
		Whisper: Whisper{
			Binary: "whisper-ctranslate2",
			Model:  "base",
		},
		Download: Download{
			Binary:           "yt-dlp",
			AudioQuality:     192,
			CaptionLanguages: []string{"en"},
			Retries:          3,
		},
		Dropbox: Dropbox{
			RedirectURI:         "http://localhost:8080/oauth/callback",
			PollIntervalSeconds: 30,
			OAuthBind:           "127.0.0.1:8080",
		},
		Notifications: Notifications{
			Email: Email{
				SMTPHost: "smtp.gmail.com",
				SMTPPort: 587,
			},
		},
		Workflow: Workflow{
			DebounceMilliseconds: 500,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

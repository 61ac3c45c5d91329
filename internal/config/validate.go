package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case ModeLocal, ModeDropbox:
	default:
		problems = append(problems, fmt.Sprintf("mode must be %q or %q, got %q", ModeLocal, ModeDropbox, c.Mode))
	}

	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		problems = append(problems, "gemini.api_key is required (or set GEMINI_API_KEY)")
	}
	if c.Gemini.MaxRetries <= 0 {
		problems = append(problems, "gemini.max_retries must be positive")
	}
	if c.Gemini.RetryDelaySeconds <= 0 {
		problems = append(problems, "gemini.retry_delay_seconds must be positive")
	}

	if c.Mode == ModeDropbox {
		if strings.TrimSpace(c.Dropbox.AppKey) == "" || strings.TrimSpace(c.Dropbox.AppSecret) == "" {
			problems = append(problems, "dropbox.app_key and dropbox.app_secret are required for dropbox mode")
		}
	}

	tg := c.Notifications.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		problems = append(problems, "notifications.telegram requires bot_token and chat_id when enabled")
	}
	em := c.Notifications.Email
	if em.Enabled {
		for name, value := range map[string]string{
			"smtp_host": em.SMTPHost,
			"username":  em.Username,
			"password":  em.Password,
			"from":      em.From,
			"to":        em.To,
		} {
			if strings.TrimSpace(value) == "" {
				problems = append(problems, "notifications.email requires "+name+" when enabled")
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

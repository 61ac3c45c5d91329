package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalize expands path fields and fills directories derived from DataDir.
func (c *Config) normalize() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeLocal
	}

	dataDir, err := expandPath(c.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("normalize data_dir: %w", err)
	}
	c.Paths.DataDir = dataDir

	derive := func(dst *string, name, fallback string) error {
		if strings.TrimSpace(*dst) == "" {
			*dst = filepath.Join(dataDir, fallback)
			return nil
		}
		expanded, err := expandPath(*dst)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", name, err)
		}
		*dst = expanded
		return nil
	}

	if err := derive(&c.Paths.InboxDir, "inbox_dir", "Inbox"); err != nil {
		return err
	}
	if err := derive(&c.Paths.OutboxDir, "outbox_dir", "Outbox"); err != nil {
		return err
	}
	if err := derive(&c.Paths.ArchiveDir, "archive_dir", "Archive"); err != nil {
		return err
	}
	if err := derive(&c.Paths.TempDir, "temp_dir", "temp"); err != nil {
		return err
	}
	if err := derive(&c.Paths.LogDir, "log_dir", "Logs"); err != nil {
		return err
	}
	if err := derive(&c.Paths.TokensDir, "tokens_dir", "tokens"); err != nil {
		return err
	}
	if err := derive(&c.Paths.StateDir, "state_dir", "state"); err != nil {
		return err
	}
	if err := derive(&c.Paths.LedgerPath, "ledger_path", "processed.db"); err != nil {
		return err
	}

	if len(c.Download.CaptionLanguages) == 0 {
		c.Download.CaptionLanguages = []string{"en"}
	}
	if c.Workflow.DebounceMilliseconds <= 0 {
		c.Workflow.DebounceMilliseconds = 500
	}
	return nil
}

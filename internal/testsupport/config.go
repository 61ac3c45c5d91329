// Package testsupport provides helpers shared across package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"voxbox/internal/config"
)

// NewConfig returns a validated configuration rooted in a temp directory,
// with just enough filled in to pass validation.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.InboxDir = filepath.Join(dir, "Inbox")
	cfg.Paths.OutboxDir = filepath.Join(dir, "Outbox")
	cfg.Paths.ArchiveDir = filepath.Join(dir, "Archive")
	cfg.Paths.TempDir = filepath.Join(dir, "temp")
	cfg.Paths.LogDir = filepath.Join(dir, "Logs")
	cfg.Paths.TokensDir = filepath.Join(dir, "tokens")
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Paths.LedgerPath = filepath.Join(dir, "processed.db")
	cfg.Gemini.APIKey = "test-key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

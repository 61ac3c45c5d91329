package dropbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AccountCursor is the persisted polling position for one account.
// Initialized is set after the app folder scaffold has been created, so
// restarts do not re-run it.
type AccountCursor struct {
	AccountID   string `json:"account_id"`
	Cursor      string `json:"cursor"`
	Initialized bool   `json:"initialized"`
}

// StateStore persists one cursor file per account.
type StateStore struct {
	dir string
}

func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &StateStore{dir: dir}, nil
}

func (s *StateStore) path(accountID string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(accountID)
	return filepath.Join(s.dir, name+".cursor.json")
}

// Load returns the stored cursor, or a zero cursor for a new account.
func (s *StateStore) Load(accountID string) (AccountCursor, error) {
	data, err := os.ReadFile(s.path(accountID))
	if os.IsNotExist(err) {
		return AccountCursor{AccountID: accountID}, nil
	}
	if err != nil {
		return AccountCursor{}, fmt.Errorf("read cursor state: %w", err)
	}
	var cursor AccountCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return AccountCursor{}, fmt.Errorf("decode cursor state: %w", err)
	}
	return cursor, nil
}

// Save atomically replaces the cursor file.
func (s *StateStore) Save(cursor AccountCursor) error {
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor state: %w", err)
	}
	path := s.path(cursor.AccountID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cursor state: %w", err)
	}
	return nil
}

// Package credentials persists per-account Dropbox OAuth tokens as
// restricted-permission JSON files.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound indicates no stored credential for the account.
var ErrNotFound = errors.New("credential not found")

// Credential is one account's OAuth state.
type Credential struct {
	AccountID    string    `json:"account_id"`
	AccountEmail string    `json:"account_email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AuthorizedAt time.Time `json:"authorized_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store keeps one JSON file per account under a 0700 directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create tokens directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(accountID string) string {
	return filepath.Join(s.dir, sanitizeAccountID(accountID)+".json")
}

// Dropbox account IDs look like "dbid:AAB...", so strip separators that
// are unsafe in filenames.
func sanitizeAccountID(accountID string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(accountID)
}

// Save writes the credential with mode 0600, stamping UpdatedAt.
func (s *Store) Save(cred Credential) error {
	if cred.AccountID == "" {
		return errors.New("credential missing account id")
	}
	cred.UpdatedAt = time.Now().UTC()
	if cred.AuthorizedAt.IsZero() {
		cred.AuthorizedAt = cred.UpdatedAt
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.WriteFile(s.path(cred.AccountID), data, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

// Load returns the stored credential or ErrNotFound.
func (s *Store) Load(accountID string) (Credential, error) {
	data, err := os.ReadFile(s.path(accountID))
	if os.IsNotExist(err) {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

// Delete removes the credential; deleting a missing one is not an error.
func (s *Store) Delete(accountID string) error {
	err := os.Remove(s.path(accountID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// ListAccountIDs returns the IDs of every stored credential.
func (s *Store) ListAccountIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan tokens directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cred Credential
		if err := json.Unmarshal(data, &cred); err != nil || cred.AccountID == "" {
			continue
		}
		ids = append(ids, cred.AccountID)
	}
	return ids, nil
}

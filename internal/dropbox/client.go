// Package dropbox polls Dropbox app folders for job files and mirrors
// results back. The HTTP client speaks the v2 RPC and content endpoints
// directly.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase     = "https://api.dropboxapi.com/2"
	defaultContentBase = "https://content.dropboxapi.com/2"
)

// Entry is one item returned by folder listing.
type Entry struct {
	Tag       string `json:".tag"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	PathLower string `json:"path_lower"`
}

func (e Entry) IsFile() bool { return e.Tag == "file" }

// ListFolderResult is one page of a folder listing.
type ListFolderResult struct {
	Entries []Entry `json:"entries"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

// Account identifies the authorized user.
type Account struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      struct {
		DisplayName string `json:"display_name"`
	} `json:"name"`
}

// APIError carries the error summary Dropbox returns with non-2xx
// responses.
type APIError struct {
	StatusCode int
	Summary    string `json:"error_summary"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox API status %d: %s", e.StatusCode, e.Summary)
}

// IsAuth reports an expired or invalid access token.
func (e *APIError) IsAuth() bool { return e.StatusCode == http.StatusUnauthorized }

// IsPathNotFound reports the path/not_found error family.
func (e *APIError) IsPathNotFound() bool {
	return strings.Contains(e.Summary, "not_found")
}

// IsConflict reports path/conflict, e.g. a folder that already exists.
func (e *APIError) IsConflict() bool {
	return strings.Contains(e.Summary, "conflict")
}

// Client is an authorized Dropbox API client for one account.
type Client struct {
	accessToken string
	apiBase     string
	contentBase string
	httpClient  *http.Client
}

func NewClient(accessToken string) *Client {
	return &Client{
		accessToken: accessToken,
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// WithBases overrides endpoint bases, for tests.
func (c *Client) WithBases(apiBase, contentBase string) *Client {
	c.apiBase = apiBase
	c.contentBase = contentBase
	return c
}

// CurrentAccount returns the account the token belongs to.
func (c *Client) CurrentAccount(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.rpc(ctx, "/users/get_current_account", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListFolder starts a listing of path.
func (c *Client) ListFolder(ctx context.Context, path string) (*ListFolderResult, error) {
	var result ListFolderResult
	err := c.rpc(ctx, "/files/list_folder", map[string]any{
		"path":      path,
		"recursive": false,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListFolderContinue resumes a listing from cursor.
func (c *Client) ListFolderContinue(ctx context.Context, cursor string) (*ListFolderResult, error) {
	var result ListFolderResult
	err := c.rpc(ctx, "/files/list_folder/continue", map[string]any{
		"cursor": cursor,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateFolder creates path; the caller decides whether conflict is fine.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	return c.rpc(ctx, "/files/create_folder_v2", map[string]any{"path": path}, nil)
}

// Move relocates a file, autorenaming on collision.
func (c *Client) Move(ctx context.Context, fromPath, toPath string) error {
	return c.rpc(ctx, "/files/move_v2", map[string]any{
		"from_path":  fromPath,
		"to_path":    toPath,
		"autorename": true,
	}, nil)
}

// Download fetches a file's content.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	arg, err := json.Marshal(map[string]any{"path": path})
	if err != nil {
		return nil, fmt.Errorf("encode download arg: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/files/download", nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Upload writes content to path, overwriting any existing file.
func (c *Client) Upload(ctx context.Context, path string, content []byte) error {
	return c.upload(ctx, path, "overwrite", content)
}

// UploadNew writes content only when path does not already exist; the
// caller sees a conflict error otherwise.
func (c *Client) UploadNew(ctx context.Context, path string, content []byte) error {
	return c.upload(ctx, path, "add", content)
}

func (c *Client) upload(ctx context.Context, path, mode string, content []byte) error {
	arg, err := json.Marshal(map[string]any{
		"path":       path,
		"mode":       mode,
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return fmt.Errorf("encode upload arg: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/files/upload", bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

func (c *Client) rpc(ctx context.Context, endpoint string, args any, out any) error {
	var body io.Reader
	if args != nil {
		payload, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", endpoint, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if args != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Summary == "" {
		apiErr.Summary = strings.TrimSpace(string(data))
	}
	return apiErr
}

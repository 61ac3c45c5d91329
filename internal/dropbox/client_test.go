package dropbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFolderAndContinue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/files/list_folder":
			var args map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
			assert.Equal(t, "/Inbox", args["path"])
			json.NewEncoder(w).Encode(ListFolderResult{
				Entries: []Entry{{Tag: "file", ID: "id:1", Name: "a.txt", PathLower: "/inbox/a.txt"}},
				Cursor:  "cursor-1",
				HasMore: true,
			})
		case "/files/list_folder/continue":
			var args map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
			assert.Equal(t, "cursor-1", args["cursor"])
			json.NewEncoder(w).Encode(ListFolderResult{Cursor: "cursor-2"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient("token-1").WithBases(server.URL, server.URL)
	page, err := client.ListFolder(context.Background(), "/Inbox")
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.True(t, page.Entries[0].IsFile())
	assert.True(t, page.HasMore)

	page, err = client.ListFolderContinue(context.Background(), page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", page.Cursor)
}

func TestDownloadUsesAPIArgHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/download", r.URL.Path)
		assert.JSONEq(t, `{"path":"/inbox/a.txt"}`, r.Header.Get("Dropbox-API-Arg"))
		w.Write([]byte("file body"))
	}))
	defer server.Close()

	client := NewClient("t").WithBases(server.URL, server.URL)
	data, err := client.Download(context.Background(), "/inbox/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
}

func TestAPIErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error_summary":"path/not_found/..."}`))
	}))
	defer server.Close()

	client := NewClient("t").WithBases(server.URL, server.URL)
	_, err := client.ListFolder(context.Background(), "/Inbox")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsPathNotFound())
	assert.False(t, apiErr.IsAuth())
}

func TestAuthErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error_summary":"expired_access_token/"}`))
	}))
	defer server.Close()

	client := NewClient("stale").WithBases(server.URL, server.URL)
	_, err := client.CurrentAccount(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsAuth())
}

func TestUploadModes(t *testing.T) {
	var modes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var arg map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		modes = append(modes, arg["mode"].(string))
	}))
	defer server.Close()

	client := NewClient("t").WithBases(server.URL, server.URL)
	require.NoError(t, client.Upload(context.Background(), "/Outbox/x.md", []byte("x")))
	require.NoError(t, client.UploadNew(context.Background(), "/tags.txt", []byte("x")))
	assert.Equal(t, []string{"overwrite", "add"}, modes)
}

func TestRefreshAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "fresh"})
	}))
	defer server.Close()

	auth := NewAuth("key", "secret").WithTokenURL(server.URL)
	token, err := auth.RefreshAccessToken(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
}

func TestAuthorizeURL(t *testing.T) {
	auth := NewAuth("key", "secret")
	u := auth.AuthorizeURL("http://localhost:8080/oauth/callback", "state-1", "challenge-1")
	assert.Contains(t, u, "https://www.dropbox.com/oauth2/authorize?")
	assert.Contains(t, u, "client_id=key")
	assert.Contains(t, u, "code_challenge=challenge-1")
	assert.Contains(t, u, "token_access_type=offline")
}

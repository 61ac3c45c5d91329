package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTokenURL = "https://api.dropboxapi.com/oauth2/token"

// TokenResponse is the OAuth token endpoint's reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	AccountID    string `json:"account_id"`
}

// Auth exchanges and refreshes OAuth tokens.
type Auth struct {
	appKey     string
	appSecret  string
	tokenURL   string
	httpClient *http.Client
}

func NewAuth(appKey, appSecret string) *Auth {
	return &Auth{
		appKey:     appKey,
		appSecret:  appSecret,
		tokenURL:   defaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithTokenURL overrides the token endpoint, for tests.
func (a *Auth) WithTokenURL(tokenURL string) *Auth {
	a.tokenURL = tokenURL
	return a
}

// AuthorizeURL builds the user-facing consent URL for the PKCE flow.
// Offline access is requested so a refresh token comes back.
func (a *Auth) AuthorizeURL(redirectURI, state, codeChallenge string) string {
	query := url.Values{
		"client_id":             {a.appKey},
		"response_type":         {"code"},
		"redirect_uri":          {redirectURI},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
		"token_access_type":     {"offline"},
	}
	return "https://www.dropbox.com/oauth2/authorize?" + query.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	return a.token(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
		"client_id":     {a.appKey},
	})
}

// RefreshAccessToken obtains a fresh access token.
func (a *Auth) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return a.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {a.appKey},
		"client_secret": {a.appSecret},
	})
}

func (a *Auth) token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{StatusCode: resp.StatusCode, Summary: strings.TrimSpace(string(body))}
	}
	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}
	return &token, nil
}

// Package oauth runs the local callback server that authorizes new
// Dropbox accounts with the PKCE flow.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxbox/internal/credentials"
	"voxbox/internal/dropbox"
)

// Server handles /oauth/callback and stores the resulting credential.
type Server struct {
	auth        *dropbox.Auth
	creds       *credentials.Store
	redirectURI string
	bindAddr    string
	allowed     []string
	logger      *slog.Logger

	mu       sync.Mutex
	verifier string
	state    string

	// accountFor is swappable for tests; it resolves the freshly issued
	// token to its account identity.
	accountFor func(ctx context.Context, accessToken string) (*dropbox.Account, error)
}

func NewServer(auth *dropbox.Auth, creds *credentials.Store, redirectURI, bindAddr string, allowed []string, logger *slog.Logger) *Server {
	return &Server{
		auth:        auth,
		creds:       creds,
		redirectURI: redirectURI,
		bindAddr:    bindAddr,
		allowed:     allowed,
		logger:      logger,
		accountFor: func(ctx context.Context, accessToken string) (*dropbox.Account, error) {
			return dropbox.NewClient(accessToken).CurrentAccount(ctx)
		},
	}
}

// AuthorizeURL starts a fresh PKCE round and returns the consent URL the
// user must open.
func (s *Server) AuthorizeURL() (string, error) {
	verifier, err := randomToken(64)
	if err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	s.mu.Lock()
	s.verifier = verifier
	s.state = uuid.NewString()
	state := s.state
	s.mu.Unlock()

	return s.auth.AuthorizeURL(s.redirectURI, state, challenge), nil
}

// Run serves the callback endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "VoxBox authorization server. Use the CLI to start a new authorization.")
	})
	mux.HandleFunc("/oauth/callback", s.handleCallback)

	server := &http.Server{Addr: s.bindAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("authorization server listening", slog.String("addr", s.bindAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		http.Error(w, "authorization denied: "+errCode, http.StatusBadRequest)
		return
	}
	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	verifier, state := s.verifier, s.state
	s.mu.Unlock()
	if verifier == "" || query.Get("state") != state {
		http.Error(w, "authorization state mismatch; restart the flow", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	token, err := s.auth.ExchangeCode(ctx, code, s.redirectURI, verifier)
	if err != nil {
		s.logger.Error("code exchange failed", slog.Any("error", err))
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}
	account, err := s.accountFor(ctx, token.AccessToken)
	if err != nil {
		s.logger.Error("cannot resolve account", slog.Any("error", err))
		http.Error(w, "cannot resolve account", http.StatusBadGateway)
		return
	}
	if !s.accountAllowed(account.AccountID, account.Email) {
		s.logger.Warn("account not in allowlist",
			slog.String("account", account.AccountID), slog.String("email", account.Email))
		http.Error(w, "this account is not permitted", http.StatusForbidden)
		return
	}

	if err := s.creds.Save(credentials.Credential{
		AccountID:    account.AccountID,
		AccountEmail: account.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AuthorizedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("cannot store credential", slog.Any("error", err))
		http.Error(w, "cannot store credential", http.StatusInternalServerError)
		return
	}

	// One authorization per round.
	s.mu.Lock()
	s.verifier, s.state = "", ""
	s.mu.Unlock()

	s.logger.Info("account authorized",
		slog.String("account", account.AccountID), slog.String("email", account.Email))
	fmt.Fprintf(w, "Authorized %s. You can close this window.\n", account.Email)
}

func (s *Server) accountAllowed(accountID, email string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	for _, allowed := range s.allowed {
		if allowed == accountID || allowed == email {
			return true
		}
	}
	return false
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

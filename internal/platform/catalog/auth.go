package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aeromap/odm-orchestrator/internal/config"
)

// expiryMargin is subtracted from a token's lifetime so a token is never
// used within the last seconds before it expires.
const expiryMargin = 30 * time.Second

// TokenSource obtains and caches OAuth access tokens via the password grant.
type TokenSource struct {
	cfg        config.OAuthConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a TokenSource for the configured identity provider.
func NewTokenSource(cfg config.OAuthConfig, logger *slog.Logger) *TokenSource {
	return &TokenSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "oauth_token_source"),
	}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is missing or about to expire.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiry.Add(-expiryMargin)) {
		return s.token, nil
	}

	form := url.Values{
		"grant_type": {s.cfg.GrantType},
		"username":   {s.cfg.Username},
		"password":   {s.cfg.Password},
		"client_id":  {s.cfg.ClientID},
	}
	if s.cfg.ClientSecret != "" {
		form.Set("client_secret", s.cfg.ClientSecret)
	}
	if s.cfg.Scope != "" {
		form.Set("scope", s.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("invalid token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	s.token = payload.AccessToken
	s.expiry = tokenExpiry(payload.AccessToken, payload.ExpiresIn)
	s.logger.Debug("access token refreshed", "expires_at", s.expiry)
	return s.token, nil
}

// tokenExpiry determines when the token expires, preferring the JWT exp
// claim over the advisory expires_in field.
func tokenExpiry(token string, expiresIn int) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	// No expiry information at all; force a refresh on the next use.
	return time.Now()
}

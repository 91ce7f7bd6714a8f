package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeromap/odm-orchestrator/internal/config"
)

// unsignedJWT builds a JWT with the given exp claim and a fake signature.
// The token source never verifies signatures, only reads claims.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]any{"exp": exp.Unix()})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return header + "." + payload + ".signature"
}

func newTestTokenSource(tokenURL string) *TokenSource {
	return NewTokenSource(config.OAuthConfig{
		TokenURL:  tokenURL,
		Username:  "svc-odm",
		Password:  "svc-pass",
		ClientID:  "odm-orchestrator",
		GrantType: "password",
		Scope:     "openid",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestToken(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches via password grant", func(t *testing.T) {
		accessToken := unsignedJWT(t, time.Now().Add(time.Hour))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostFormValue("grant_type"))
			assert.Equal(t, "svc-odm", r.PostFormValue("username"))
			assert.Equal(t, "odm-orchestrator", r.PostFormValue("client_id"))
			assert.Equal(t, "openid", r.PostFormValue("scope"))
			fmt.Fprintf(w, `{"access_token": %q, "expires_in": 3600}`, accessToken)
		}))
		defer server.Close()

		token, err := newTestTokenSource(server.URL).Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, accessToken, token)
	})

	t.Run("caches until expiry", func(t *testing.T) {
		var requests int
		accessToken := unsignedJWT(t, time.Now().Add(time.Hour))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			fmt.Fprintf(w, `{"access_token": %q, "expires_in": 3600}`, accessToken)
		}))
		defer server.Close()

		source := newTestTokenSource(server.URL)
		_, err := source.Token(ctx)
		require.NoError(t, err)
		_, err = source.Token(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, requests)
	})

	t.Run("refreshes an expired token", func(t *testing.T) {
		var requests int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			// Expires inside the safety margin, so the cache never holds.
			token := unsignedJWT(t, time.Now().Add(10*time.Second))
			fmt.Fprintf(w, `{"access_token": %q}`, token)
		}))
		defer server.Close()

		source := newTestTokenSource(server.URL)
		_, err := source.Token(ctx)
		require.NoError(t, err)
		_, err = source.Token(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, requests)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": "invalid_grant"}`)
		}))
		defer server.Close()

		_, err := newTestTokenSource(server.URL).Token(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("empty access token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"expires_in": 3600}`)
		}))
		defer server.Close()

		_, err := newTestTokenSource(server.URL).Token(ctx)
		assert.Error(t, err)
	})
}

func TestTokenExpiry(t *testing.T) {
	t.Run("prefers the exp claim", func(t *testing.T) {
		exp := time.Now().Add(90 * time.Minute).Truncate(time.Second)
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
		claims, err := json.Marshal(map[string]any{"exp": exp.Unix()})
		require.NoError(t, err)
		token := header + "." + base64.RawURLEncoding.EncodeToString(claims) + ".sig"

		got := tokenExpiry(token, 60)
		assert.Equal(t, exp.Unix(), got.Unix())
	})

	t.Run("falls back to expires_in for opaque tokens", func(t *testing.T) {
		got := tokenExpiry("opaque-token", 3600)
		assert.WithinDuration(t, time.Now().Add(time.Hour), got, 5*time.Second)
	})

	t.Run("no expiry information means immediate refresh", func(t *testing.T) {
		got := tokenExpiry("opaque-token", 0)
		assert.WithinDuration(t, time.Now(), got, 5*time.Second)
	})
}

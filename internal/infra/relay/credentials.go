package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialSource yields the bearer credential presented to the relay
// and to authenticated catalog calls. Implementations refresh expired
// tokens; the connection manager asks for a token before every
// (re)connect attempt.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentialSource returns a fixed token. Useful for tests and
// local setups without a token endpoint.
type StaticCredentialSource string

func (s StaticCredentialSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("relay: no static token configured")
	}
	return string(s), nil
}

// CachedTokenSource fetches an ID token from the session endpoint and
// caches it until shortly before the JWT exp claim.
type CachedTokenSource struct {
	Endpoint string
	Client   *http.Client
	// Skew is subtracted from the exp claim so a token is refreshed
	// before it actually lapses. Defaults to 30s.
	Skew time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

// Token returns the cached token, refreshing it when missing or close
// to expiry.
func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skew := s.Skew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	if s.token != "" && (s.expiresAt.IsZero() || time.Now().Before(s.expiresAt.Add(-skew))) {
		return s.token, nil
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("relay: build token request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay: token fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("relay: token endpoint returned %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("relay: decode token response: %w", err)
	}
	if payload.IDToken == "" {
		return "", fmt.Errorf("relay: token endpoint returned no id_token")
	}

	s.token = payload.IDToken
	s.expiresAt = tokenExpiry(payload.IDToken)
	return s.token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// gateway only needs the lifetime, the relay does the verification.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

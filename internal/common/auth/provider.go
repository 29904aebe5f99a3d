package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Credentials carries the session credentials attached to every remote call.
type Credentials struct {
	Token     string
	ExpiresAt time.Time
}

// Provider supplies credentials for the remote analytics service. The auth
// flow itself lives outside this module; the pipeline only consumes tokens.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider returns a fixed token. Used in demo mode and tests.
type StaticProvider struct {
	Token string
}

func (p *StaticProvider) Credentials(ctx context.Context) (Credentials, error) {
	return Credentials{Token: p.Token}, nil
}

// TokenResponse holds the response from the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// TokenProvider fetches tokens with the client-credentials flow and caches
// them until expiry.
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewTokenProvider(tokenURL, clientID, clientSecret string) *TokenProvider {
	return &TokenProvider{
		tokenURL:     strings.TrimSuffix(tokenURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *TokenProvider) Credentials(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokenExpiry.After(time.Now()) && p.accessToken != "" {
		return Credentials{Token: p.accessToken, ExpiresAt: p.tokenExpiry}, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", p.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Credentials{}, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	p.accessToken = tokenResp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return Credentials{Token: p.accessToken, ExpiresAt: p.tokenExpiry}, nil
}

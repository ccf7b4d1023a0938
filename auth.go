package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// TokenCache stores OAuth 2 access tokens with expiration, keyed by token URL and clientID.
type TokenCache struct {
	cache map[string]cacheEntry
	mu    sync.RWMutex
}

type cacheEntry struct {
	token     string
	expiresAt time.Time // Token Expiration Time + 5 minute buffer
}

var tokenCache = &TokenCache{
	cache: make(map[string]cacheEntry),
}

// cacheKey generates a cache key from token URL and clientID.
func cacheKey(tokenURL, clientID string) string {
	return fmt.Sprintf("assistant-bridge:tokencache:%s:%s", tokenURL, clientID)
}

// GetCachedToken returns a valid cached token if available, otherwise returns empty string.
func (tc *TokenCache) GetCachedToken(tokenURL, clientID string) string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	key := cacheKey(tokenURL, clientID)
	entry, ok := tc.cache[key]
	if ok && entry.token != "" && time.Now().Before(entry.expiresAt) {
		return entry.token
	}
	return ""
}

// SetToken caches a token with expiration time.
func (tc *TokenCache) SetToken(tokenURL, clientID, token string, expiresIn time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	key := cacheKey(tokenURL, clientID)
	tc.cache[key] = cacheEntry{
		token:     token,
		expiresAt: time.Now().Add(expiresIn - 5*time.Minute), // Subtract 5 minute buffer for safety
	}
}

// ClearToken clears the cached token for a specific token URL and clientID (useful for testing).
func (tc *TokenCache) ClearToken(tokenURL, clientID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	key := cacheKey(tokenURL, clientID)
	delete(tc.cache, key)
}

// OAuth2TokenFetcher defines the interface for fetching OAuth 2 tokens.
type OAuth2TokenFetcher interface {
	GetToken(ctx context.Context, tokenURL, clientID, clientSecret string) (string, error)
}

// DefaultOAuth2TokenFetcher implements OAuth2TokenFetcher using HTTP client.
type DefaultOAuth2TokenFetcher struct {
	client HTTPClient
}

// NewOAuth2TokenFetcher creates a new OAuth2TokenFetcher with default configuration.
// Uses a retry-enabled HTTP client.
func NewOAuth2TokenFetcher(logger *Logger) *DefaultOAuth2TokenFetcher {
	return &DefaultOAuth2TokenFetcher{
		client: NewRetryHTTPClient(WithLogger(logger)),
	}
}

// GetToken fetches an OAuth 2 access token using client credentials flow.
func (f *DefaultOAuth2TokenFetcher) GetToken(ctx context.Context, tokenURL, clientID, clientSecret string) (string, error) {
	// Check cache first
	if cachedToken := tokenCache.GetCachedToken(tokenURL, clientID); cachedToken != "" {
		return cachedToken, nil
	}

	// Prepare JSON payload
	payload := map[string]string{
		"grant_type": "client_credentials",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned non-200 status: %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading token response: %v", err)
	}

	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return "", fmt.Errorf("error parsing token response: %v", err)
	}

	if tokenResponse.AccessToken == "" {
		return "", fmt.Errorf("missing access_token in token response")
	}

	// Cache the token
	if tokenResponse.ExpiresIn > 0 {
		tokenCache.SetToken(tokenURL, clientID, tokenResponse.AccessToken, time.Duration(tokenResponse.ExpiresIn)*time.Second)
	}

	return tokenResponse.AccessToken, nil
}

// basicAuthValue encodes basic auth credentials the way net/http does.
func basicAuthValue(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

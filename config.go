package main

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Config holds process configuration, resolved from environment variables and
// optionally AWS Secrets Manager for credentials.
type Config struct {
	// DomainName is the public host of this service, used to build callback
	// and webhook URLs.
	DomainName string

	// Conversation platform API.
	PlatformAPIURL string
	AccountSid     string
	AuthToken      string

	// Assistant service API. OAuth client credentials take precedence over
	// the platform's basic auth credentials.
	AssistantAPIURL            string
	AssistantSid               string
	AssistantOAuthClientID     string
	AssistantOAuthClientSecret string
	AssistantOAuthTokenURL     string

	// Callback token signing.
	SigningSecret string
	TokenTTL      time.Duration

	// Handover.
	DefaultFlowSid     string
	IdentifiedServices []string
	IdentifiedAreas    []string

	// NotifySender is the author identity used for clarifying notifications.
	NotifySender string
}

// LoadConfig resolves configuration from the environment. When
// CREDENTIALS_SECRET_ARN is set, credentials are fetched from Secrets Manager
// and override their environment counterparts.
func LoadConfig(ctx context.Context, logger *Logger) (*Config, error) {
	cfg := &Config{
		DomainName:                 GetFromEnv("DOMAIN_NAME", ""),
		PlatformAPIURL:             GetFromEnv("CONVERSATIONS_API_URL", "https://conversations.twilio.com"),
		AccountSid:                 GetFromEnv("ACCOUNT_SID", ""),
		AuthToken:                  GetFromEnv("AUTH_TOKEN", ""),
		AssistantAPIURL:            GetFromEnv("ASSISTANTS_API_URL", "https://assistants.twilio.com"),
		AssistantSid:               GetFromEnv("ASSISTANT_SID", ""),
		AssistantOAuthClientID:     GetFromEnv("ASSISTANT_OAUTH_CLIENT_ID", ""),
		AssistantOAuthClientSecret: GetFromEnv("ASSISTANT_OAUTH_CLIENT_SECRET", ""),
		AssistantOAuthTokenURL:     GetFromEnv("ASSISTANT_OAUTH_TOKEN_URL", ""),
		SigningSecret:              GetFromEnv("SIGNING_SECRET", ""),
		TokenTTL:                   GetDurationFromEnv("CALLBACK_TOKEN_TTL", 15*time.Minute),
		DefaultFlowSid:             GetFromEnv("STUDIO_FLOW_SID", ""),
		IdentifiedServices:         GetListFromEnv("IDENTIFIED_SERVICES"),
		IdentifiedAreas:            GetListFromEnv("IDENTIFIED_AREAS"),
		NotifySender:               GetFromEnv("NOTIFY_SENDER_IDENTITY", ""),
	}

	if secretARN := GetFromEnv("CREDENTIALS_SECRET_ARN", ""); secretARN != "" {
		credentials, err := GetCredentialsFromSecretsManager(ctx, logger, secretARN)
		if err != nil {
			return nil, fmt.Errorf("error loading credentials: %v", err)
		}
		cfg.AccountSid = credentials.AccountSid
		cfg.AuthToken = credentials.AuthToken
		cfg.SigningSecret = credentials.SigningSecret
		if credentials.AssistantOAuthClientID != "" {
			cfg.AssistantOAuthClientID = credentials.AssistantOAuthClientID
			cfg.AssistantOAuthClientSecret = credentials.AssistantOAuthClientSecret
		}
	}

	if cfg.DomainName == "" {
		return nil, fmt.Errorf("DOMAIN_NAME is required")
	}
	if cfg.AccountSid == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("platform credentials are required")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("SIGNING_SECRET is required")
	}

	return cfg, nil
}

// PlatformAuth returns the basic-auth configuration for the platform API.
func (c *Config) PlatformAuth() *AuthConfig {
	return &AuthConfig{Username: c.AccountSid, Password: c.AuthToken}
}

// AssistantAuth returns the auth configuration for the assistant service:
// OAuth client credentials when configured, otherwise the platform's basic
// auth.
func (c *Config) AssistantAuth(tokenFetcher OAuth2TokenFetcher) *AuthConfig {
	if c.AssistantOAuthClientID != "" && c.AssistantOAuthClientSecret != "" {
		return &AuthConfig{
			TokenURL:          c.AssistantOAuthTokenURL,
			OAuthClientID:     c.AssistantOAuthClientID,
			OAuthClientSecret: c.AssistantOAuthClientSecret,
			TokenFetcher:      tokenFetcher,
		}
	}
	return c.PlatformAuth()
}

// CallbackURL builds the signed callback URL an assistant response will be
// posted to. The token travels as a query parameter because the assistant
// round-trips the URL verbatim.
func (c *Config) CallbackURL(token, assistantIdentity string) string {
	params := url.Values{}
	params.Set("_token", token)
	if assistantIdentity != "" {
		params.Set("_assistantIdentity", assistantIdentity)
	}
	return fmt.Sprintf("https://%s/channels/conversations/response?%s", c.DomainName, params.Encode())
}

// MessageAddedURL is the webhook URL new conversation messages are delivered
// to while the assistant owns the conversation.
func (c *Config) MessageAddedURL() string {
	return fmt.Sprintf("https://%s/channels/conversations/messageAdded", c.DomainName)
}

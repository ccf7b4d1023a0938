package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Credentials represents service credentials retrieved from Secrets Manager.
type Credentials struct {
	AccountSid                 string
	AuthToken                  string
	SigningSecret              string
	AssistantOAuthClientID     string
	AssistantOAuthClientSecret string
}

// credentialsCache avoids a Secrets Manager round trip on every invocation of
// a warm Lambda.
var credentialsCache = struct {
	mu    sync.RWMutex
	cache map[string]*Credentials
}{cache: make(map[string]*Credentials)}

// GetCredentialsFromSecretsManager fetches service credentials from AWS
// Secrets Manager. The secret is a JSON object with accountSid, authToken and
// signingSecret fields, plus optional assistantOauthClientId and
// assistantOauthClientSecret.
func GetCredentialsFromSecretsManager(ctx context.Context, logger *Logger, secretArn string) (*Credentials, error) {
	credentialsCache.mu.RLock()
	cached, ok := credentialsCache.cache[secretArn]
	credentialsCache.mu.RUnlock()
	if ok {
		return cached, nil
	}

	// Extract region from secret ARN
	region, err := extractRegionFromSecretArn(secretArn)
	if err != nil {
		return nil, fmt.Errorf("failed to extract region from secret ARN: %w", err)
	}

	// Load AWS config with the region
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Errorf("Failed to load AWS config: %v", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create Secrets Manager client
	client := secretsmanager.NewFromConfig(cfg)

	// Get secret value
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	}

	result, err := client.GetSecretValue(ctx, input)
	if err != nil {
		logger.Errorf("Failed to retrieve secret from Secrets Manager: %v", err)
		return nil, fmt.Errorf("failed to retrieve secret from Secrets Manager: %w", err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret value is empty or not a string")
	}

	// Parse JSON secret value
	var secretValue map[string]any
	if err := json.Unmarshal([]byte(*result.SecretString), &secretValue); err != nil {
		logger.Errorf("Failed to parse secret JSON: %v", err)
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	stringField := func(key string) string {
		value, _ := secretValue[key].(string)
		return value
	}

	credentials := &Credentials{
		AccountSid:                 stringField("accountSid"),
		AuthToken:                  stringField("authToken"),
		SigningSecret:              stringField("signingSecret"),
		AssistantOAuthClientID:     stringField("assistantOauthClientId"),
		AssistantOAuthClientSecret: stringField("assistantOauthClientSecret"),
	}

	if credentials.AccountSid == "" || credentials.AuthToken == "" || credentials.SigningSecret == "" {
		return nil, fmt.Errorf("secret must contain accountSid, authToken and signingSecret as non-empty strings")
	}

	logger.Debugf("Successfully retrieved credentials from Secrets Manager")

	credentialsCache.mu.Lock()
	credentialsCache.cache[secretArn] = credentials
	credentialsCache.mu.Unlock()

	return credentials, nil
}

// extractRegionFromSecretArn extracts AWS region from Secrets Manager ARN
// Format: arn:aws:secretsmanager:REGION:ACCOUNT:secret:NAME
func extractRegionFromSecretArn(arn string) (string, error) {
	parts := strings.Split(arn, ":")
	if len(parts) < 4 || parts[0] != "arn" || parts[1] != "aws" || parts[2] != "secretsmanager" {
		return "", fmt.Errorf("invalid Secrets Manager ARN format: %s", arn)
	}
	return parts[3], nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// AssistantRequest is the outbound dispatch to the assistant service. Webhook
// is the signed callback URL the assistant will invoke with its response.
type AssistantRequest struct {
	Body      string `json:"body"`
	Identity  string `json:"identity"`
	SessionID string `json:"session_id"`
	Webhook   string `json:"webhook"`
}

// AssistantClient dispatches conversation messages to the AI assistant
// service.
type AssistantClient struct {
	baseURL string
	logger  *Logger
	client  HTTPClient
}

// NewAssistantClient creates an assistant client with a retry-enabled HTTP
// client using the given auth.
func NewAssistantClient(baseURL string, auth *AuthConfig, logger *Logger) *AssistantClient {
	return &AssistantClient{
		baseURL: baseURL,
		logger:  logger,
		client:  NewRetryHTTPClient(WithLogger(logger), WithAuth(auth)),
	}
}

// SendMessage forwards a message to the assistant identified by assistantSid.
// The assistant responds asynchronously through the webhook embedded in the
// request, so a success here only means the message was accepted.
func (c *AssistantClient) SendMessage(ctx context.Context, assistantSid string, request AssistantRequest) error {
	requestURL := fmt.Sprintf("%s/v1/Assistants/%s/Messages", c.baseURL, url.PathEscape(assistantSid))

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("error marshalling assistant request: %v", err)
	}
	c.logger.Debugf("Dispatching to assistant %s: %s", assistantSid, string(jsonData))

	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating assistant request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error dispatching to assistant: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assistant dispatch returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

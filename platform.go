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

// Webhook target kinds on the conversation platform. "webhook" points at this
// service's message-added endpoint (the assistant stays attached); "studio"
// points at the human-facing flow engine (the conversation was handed over).
const (
	WebhookTargetAssistant = "webhook"
	WebhookTargetStudio    = "studio"
)

// ConversationRef identifies a conversation on the platform.
type ConversationRef struct {
	ServiceSid      string
	ConversationSid string
}

func (r ConversationRef) String() string {
	return r.ServiceSid + "/" + r.ConversationSid
}

// Conversation is the subset of the platform's conversation resource consumed
// here. Attributes is an opaque JSON document serialized as a string.
type Conversation struct {
	Sid        string `json:"sid"`
	Attributes string `json:"attributes"`
}

// Participant is a member of the conversation. Only cardinality is inspected.
type Participant struct {
	Sid      string `json:"sid"`
	Identity string `json:"identity"`
}

// Webhook is a registered event-delivery target on a conversation.
type Webhook struct {
	Sid           string               `json:"sid"`
	Target        string               `json:"target"`
	Configuration WebhookConfiguration `json:"configuration"`
}

// WebhookConfiguration holds target-kind specific settings.
type WebhookConfiguration struct {
	Method  string   `json:"method,omitempty"`
	URL     string   `json:"url,omitempty"`
	Filters []string `json:"filters,omitempty"`
	FlowSid string   `json:"flowSid,omitempty"`
}

// Message is an outbound conversation message. ContentVariables is the raw
// JSON string the platform expects for template variables.
type Message struct {
	Body             string `json:"body,omitempty"`
	Author           string `json:"author,omitempty"`
	ContentSid       string `json:"contentSid,omitempty"`
	ContentVariables string `json:"contentVariables,omitempty"`
}

// PlatformClient handles HTTP requests to the conversation platform API.
type PlatformClient struct {
	baseURL string
	logger  *Logger
	client  HTTPClient
}

// NewPlatformClient creates a platform client with a retry-enabled HTTP client
// authenticated via basic auth.
func NewPlatformClient(baseURL string, auth *AuthConfig, logger *Logger) *PlatformClient {
	return &PlatformClient{
		baseURL: baseURL,
		logger:  logger,
		client:  NewRetryHTTPClient(WithLogger(logger), WithAuth(auth)),
	}
}

func (c *PlatformClient) conversationURL(ref ConversationRef, suffix string) string {
	return fmt.Sprintf("%s/v1/Services/%s/Conversations/%s%s",
		c.baseURL, url.PathEscape(ref.ServiceSid), url.PathEscape(ref.ConversationSid), suffix)
}

// GetConversation fetches the conversation resource, including its attributes
// document.
func (c *PlatformClient) GetConversation(ctx context.Context, ref ConversationRef) (*Conversation, error) {
	body, err := c.makeRequest(ctx, "GET", c.conversationURL(ref, ""), nil)
	if err != nil {
		return nil, err
	}
	var conversation Conversation
	if err := json.Unmarshal(body, &conversation); err != nil {
		return nil, fmt.Errorf("error parsing conversation response: %v", err)
	}
	return &conversation, nil
}

// UpdateAttributes overwrites the conversation's attributes document. Callers
// must go through the StateAccessor merge so untouched keys survive.
func (c *PlatformClient) UpdateAttributes(ctx context.Context, ref ConversationRef, attributes string) error {
	payload := map[string]string{"attributes": attributes}
	_, err := c.makeRequest(ctx, "POST", c.conversationURL(ref, ""), payload)
	return err
}

// ListParticipants returns the conversation's participants.
func (c *PlatformClient) ListParticipants(ctx context.Context, ref ConversationRef) ([]Participant, error) {
	body, err := c.makeRequest(ctx, "GET", c.conversationURL(ref, "/Participants"), nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Participants []Participant `json:"participants"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing participants response: %v", err)
	}
	return result.Participants, nil
}

// ListWebhooks returns the conversation's registered webhooks.
func (c *PlatformClient) ListWebhooks(ctx context.Context, ref ConversationRef) ([]Webhook, error) {
	body, err := c.makeRequest(ctx, "GET", c.conversationURL(ref, "/Webhooks"), nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing webhooks response: %v", err)
	}
	return result.Webhooks, nil
}

// CreateWebhook registers a new webhook of the given target kind.
func (c *PlatformClient) CreateWebhook(ctx context.Context, ref ConversationRef, target string, configuration WebhookConfiguration) error {
	payload := map[string]any{
		"target":        target,
		"configuration": configuration,
	}
	_, err := c.makeRequest(ctx, "POST", c.conversationURL(ref, "/Webhooks"), payload)
	return err
}

// RemoveWebhook deletes a webhook by sid.
func (c *PlatformClient) RemoveWebhook(ctx context.Context, ref ConversationRef, webhookSid string) error {
	_, err := c.makeRequest(ctx, "DELETE", c.conversationURL(ref, "/Webhooks/"+url.PathEscape(webhookSid)), nil)
	return err
}

// CreateMessage posts a message into the conversation.
func (c *PlatformClient) CreateMessage(ctx context.Context, ref ConversationRef, message Message) error {
	_, err := c.makeRequest(ctx, "POST", c.conversationURL(ref, "/Messages"), message)
	return err
}

// makeRequest makes an HTTP request to the platform and returns the response body.
func (c *PlatformClient) makeRequest(ctx context.Context, method, requestURL string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshalling payload: %v", err)
		}
		c.logger.Debugf("Sending %s to %s with payload: %s", method, requestURL, string(jsonData))
		reader = bytes.NewReader(jsonData)
	} else {
		c.logger.Debugf("Sending %s to %s", method, requestURL)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

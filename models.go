package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ConversationEvent is the payload of the conversation-scoped endpoints
// (message-added, send-to-assistant, clean-attributes).
type ConversationEvent struct {
	ConversationSid   string `json:"ConversationSid"`
	ChatServiceSid    string `json:"ChatServiceSid"`
	Author            string `json:"Author"`
	Body              string `json:"Body"`
	AssistantSid      string `json:"AssistantSid"`
	AssistantIdentity string `json:"AssistantIdentity"`
	InfoUser          string `json:"InfoUser"`
}

// Ref returns the conversation reference of the event.
func (e *ConversationEvent) Ref() ConversationRef {
	return ConversationRef{ServiceSid: e.ChatServiceSid, ConversationSid: e.ConversationSid}
}

// AssistantCallbackEvent is the body of the assistant's asynchronous response
// callback. AssistantIdentity arrives as a query parameter, not a body field,
// and is filled in by the route handler.
type AssistantCallbackEvent struct {
	SessionID         string          `json:"SessionId"`
	Status            string          `json:"Status"`
	Body              json.RawMessage `json:"Body"`
	AssistantIdentity string          `json:"-"`
}

// BodyString returns the response body as text: a JSON string is unquoted,
// anything else (including a structured object) passes through raw for
// ParseAssistantReply to dissect.
func (e *AssistantCallbackEvent) BodyString() string {
	raw := strings.TrimSpace(string(e.Body))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	return raw
}

// Failed reports whether the callback status denotes a generation failure.
func (e *AssistantCallbackEvent) Failed() bool {
	return e.Status == "Failed" || e.Status == "Failure"
}

// ToolEvent is the body of a tool invocation from the assistant's
// tool-execution layer. SuccessMessage and FlowSid are accepted in both
// casings.
type ToolEvent struct {
	ContentSid        string          `json:"ContentSid"`
	ContentVariables  json.RawMessage `json:"ContentVariables"`
	SuccessMessage    string          `json:"SuccessMessage"`
	SuccessMessageAlt string          `json:"successMessage"`
	FlowSid           string          `json:"FlowSid"`
	FlowSidAlt        string          `json:"flowSid"`
	IdentifiedService string          `json:"IdentifiedService"`
	IdentifiedArea    string          `json:"IdentifiedArea"`
	AssistantIdentity string          `json:"AssistantIdentity"`
}

// SuccessMessageOr returns the caller-supplied success string or the default.
func (e *ToolEvent) SuccessMessageOr(defaultMessage string) string {
	if e.SuccessMessage != "" {
		return e.SuccessMessage
	}
	if e.SuccessMessageAlt != "" {
		return e.SuccessMessageAlt
	}
	return defaultMessage
}

// FlowSidOr returns the explicit target flow sid or the configured default.
func (e *ToolEvent) FlowSidOr(defaultFlowSid string) string {
	if e.FlowSid != "" {
		return e.FlowSid
	}
	if e.FlowSidAlt != "" {
		return e.FlowSidAlt
	}
	return defaultFlowSid
}

// ContentVariablesString returns the template variables as the raw JSON
// string the platform expects, whether they arrived as an object or as an
// already-serialized string.
func (e *ToolEvent) ContentVariablesString() string {
	raw := strings.TrimSpace(string(e.ContentVariables))
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	return raw
}

// AssistantReply is the assistant's response body, decided once at the
// boundary: plain text, or structured with a content template to deliver
// ahead of the plain-text fallback.
type AssistantReply struct {
	Body             string
	ContentSid       string
	ContentVariables string
}

// Structured reports whether the reply carries a content template.
func (r AssistantReply) Structured() bool {
	return r.ContentSid != ""
}

// ParseAssistantReply decodes the dynamic shape of the assistant response
// body: either a plain string, or a JSON object {body, meta:{contentSid,
// contentVariables}}. Anything that does not parse into the structured shape
// is treated as plain text.
func ParseAssistantReply(raw string) AssistantReply {
	var structured struct {
		Body string `json:"body"`
		Meta struct {
			ContentSid       string          `json:"contentSid"`
			ContentVariables json.RawMessage `json:"contentVariables"`
		} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(raw), &structured); err != nil || structured.Body == "" {
		return AssistantReply{Body: raw}
	}

	variables := strings.TrimSpace(string(structured.Meta.ContentVariables))
	if variables == "null" {
		variables = ""
	}
	if strings.HasPrefix(variables, `"`) {
		var s string
		if err := json.Unmarshal([]byte(variables), &s); err == nil {
			variables = s
		}
	}

	return AssistantReply{
		Body:             structured.Body,
		ContentSid:       structured.Meta.ContentSid,
		ContentVariables: variables,
	}
}

// DispatchOutcome is the internal result of an inbound handler. Paths that
// must always acknowledge the caller still record whether delivery actually
// happened.
type DispatchOutcome int

const (
	// OutcomeDelivered: the intended downstream effect happened.
	OutcomeDelivered DispatchOutcome = iota
	// OutcomeDegraded: the caller was acknowledged but a downstream step
	// failed and was swallowed.
	OutcomeDegraded
	// OutcomeIgnored: the event was deliberately not routed (already
	// escalated, human present).
	OutcomeIgnored
)

func (o DispatchOutcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}

// decodeEvent parses an inbound request body into dst. The platform posts
// either JSON or URL-encoded form payloads; form payloads are lifted into a
// flat JSON object before unmarshalling.
func decodeEvent(req events.LambdaFunctionURLRequest, dst any) error {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return fmt.Errorf("error decoding base64 body: %v", err)
		}
		body = string(decoded)
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
			return fmt.Errorf("error parsing JSON body: %v", err)
		}
		return nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return fmt.Errorf("error parsing form body: %v", err)
	}
	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}
	jsonBody, err := json.Marshal(flat)
	if err != nil {
		return fmt.Errorf("error re-encoding form body: %v", err)
	}
	if err := json.Unmarshal(jsonBody, dst); err != nil {
		return fmt.Errorf("error parsing form body: %v", err)
	}
	return nil
}

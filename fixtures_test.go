package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// fakePlatform is an in-memory stand-in for the conversation platform API,
// serving the subset of routes the bridge calls.
type fakePlatform struct {
	mu           sync.Mutex
	attributes   string
	participants []Participant
	webhooks     []Webhook
	messages     []Message
	failRemove   map[string]bool
	nextSid      int
	server       *httptest.Server
}

func newFakePlatform() *fakePlatform {
	p := &fakePlatform{failRemove: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/Services/{service}/Conversations/{conversation}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(Conversation{Sid: r.PathValue("conversation"), Attributes: p.attributes})
	})
	mux.HandleFunc("POST /v1/Services/{service}/Conversations/{conversation}", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Attributes string `json:"attributes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.attributes = payload.Attributes
		p.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /v1/Services/{service}/Conversations/{conversation}/Participants", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"participants": p.participants})
	})
	mux.HandleFunc("GET /v1/Services/{service}/Conversations/{conversation}/Webhooks", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"webhooks": p.webhooks})
	})
	mux.HandleFunc("POST /v1/Services/{service}/Conversations/{conversation}/Webhooks", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Target        string               `json:"target"`
			Configuration WebhookConfiguration `json:"configuration"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.nextSid++
		webhook := Webhook{
			Sid:           fmt.Sprintf("WH%04d", p.nextSid),
			Target:        payload.Target,
			Configuration: payload.Configuration,
		}
		p.webhooks = append(p.webhooks, webhook)
		p.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(webhook)
	})
	mux.HandleFunc("DELETE /v1/Services/{service}/Conversations/{conversation}/Webhooks/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.failRemove[sid] {
			// 400 is non-retryable, keeping failure-injection tests fast.
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		kept := p.webhooks[:0]
		for _, webhook := range p.webhooks {
			if webhook.Sid != sid {
				kept = append(kept, webhook)
			}
		}
		p.webhooks = kept
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /v1/Services/{service}/Conversations/{conversation}/Messages", func(w http.ResponseWriter, r *http.Request) {
		var message Message
		if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.messages = append(p.messages, message)
		p.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	p.server = httptest.NewServer(mux)
	return p
}

func (p *fakePlatform) Close() { p.server.Close() }

// setWebhook seeds a webhook and returns its sid.
func (p *fakePlatform) setWebhook(target string, configuration WebhookConfiguration) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSid++
	sid := fmt.Sprintf("WH%04d", p.nextSid)
	p.webhooks = append(p.webhooks, Webhook{Sid: sid, Target: target, Configuration: configuration})
	return sid
}

func (p *fakePlatform) setParticipants(identities ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants = nil
	for i, identity := range identities {
		p.participants = append(p.participants, Participant{Sid: fmt.Sprintf("MB%04d", i), Identity: identity})
	}
}

func (p *fakePlatform) setAttributes(attributes Attributes) {
	data, _ := json.Marshal(attributes)
	p.mu.Lock()
	p.attributes = string(data)
	p.mu.Unlock()
}

func (p *fakePlatform) getAttributes() Attributes {
	p.mu.Lock()
	defer p.mu.Unlock()
	attributes := Attributes{}
	if p.attributes != "" {
		json.Unmarshal([]byte(p.attributes), &attributes)
	}
	return attributes
}

func (p *fakePlatform) getWebhooks() []Webhook {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Webhook(nil), p.webhooks...)
}

func (p *fakePlatform) getMessages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// fakeAssistant captures outbound assistant dispatches.
type fakeAssistant struct {
	mu         sync.Mutex
	requests   []AssistantRequest
	statusCode int
	server     *httptest.Server
}

func newFakeAssistant() *fakeAssistant {
	a := &fakeAssistant{statusCode: http.StatusOK}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request AssistantRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		a.requests = append(a.requests, request)
		status := a.statusCode
		a.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	}))
	return a
}

func (a *fakeAssistant) Close() { a.server.Close() }

func (a *fakeAssistant) setStatus(statusCode int) {
	a.mu.Lock()
	a.statusCode = statusCode
	a.mu.Unlock()
}

func (a *fakeAssistant) getRequests() []AssistantRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AssistantRequest(nil), a.requests...)
}

// testConfig builds a config pointed at the fakes.
func testConfig(platform *fakePlatform, assistant *fakeAssistant) *Config {
	cfg := &Config{
		DomainName:         "bridge.test.example.com",
		PlatformAPIURL:     platform.server.URL,
		AccountSid:         "AC0000",
		AuthToken:          "secret-auth-token",
		AssistantSid:       "AI0000",
		SigningSecret:      "test-signing-secret",
		TokenTTL:           15 * time.Minute,
		DefaultFlowSid:     "FW0000",
		IdentifiedServices: []string{"banking", "insurance"},
		IdentifiedAreas:    []string{"claims", "support"},
		NotifySender:       "system_notifier",
	}
	if assistant != nil {
		cfg.AssistantAPIURL = assistant.server.URL
	}
	return cfg
}

// tokenFromCallbackURL extracts the _token query parameter from a callback URL.
func tokenFromCallbackURL(t *testing.T, callbackURL string) string {
	t.Helper()
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		t.Fatalf("invalid callback URL %q: %v", callbackURL, err)
	}
	return parsed.Query().Get("_token")
}

// newURLRequest builds a Function URL request for a route handler. A string
// body passes through verbatim; anything else is JSON-encoded.
func newURLRequest(path string, body any, headers, query map[string]string) events.LambdaFunctionURLRequest {
	var bodyString string
	switch b := body.(type) {
	case nil:
	case string:
		bodyString = b
	default:
		data, _ := json.Marshal(b)
		bodyString = string(data)
	}
	return events.LambdaFunctionURLRequest{
		RawPath:               path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  bodyString,
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method: "POST",
				Path:   path,
			},
		},
	}
}

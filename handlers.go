package main

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Customer-facing copy. The apology is posted whenever the assistant path
// fails after the caller was verified, so the channel never goes silent.
const (
	apologyMessage = "¡Uy! Parece que algo falló al procesar tu mensaje 😅\n\n¿Te parece si lo intentamos otra vez? Puedes repetir tu pregunta o escribirla de otra forma. ¡Estoy listo para ayudarte! 💬"

	unknownServiceMessage = "No pudimos identificar el servicio sobre el que necesitas ayuda 🙏\n\n¿Me cuentas un poco más para dirigirte con el equipo correcto?"
	unknownAreaMessage    = "No pudimos identificar el área indicada 🙏\n\n¿Me das un poco más de detalle para dirigirte con el equipo correcto?"

	ignoreToolOutputMessage = "Unable to perform action. Ignore this output"
)

// Handlers contains the route handlers and their shared collaborators.
type Handlers struct {
	logger    *Logger
	cfg       *Config
	platform  *PlatformClient
	assistant *AssistantClient
	state     *StateAccessor
	subs      *SubscriptionManager
	signer    *CallbackSigner
}

// NewHandlers wires the handlers from configuration.
func NewHandlers(cfg *Config, logger *Logger) *Handlers {
	platform := NewPlatformClient(cfg.PlatformAPIURL, cfg.PlatformAuth(), logger)
	assistant := NewAssistantClient(cfg.AssistantAPIURL, cfg.AssistantAuth(NewOAuth2TokenFetcher(logger)), logger)
	return &Handlers{
		logger:    logger,
		cfg:       cfg,
		platform:  platform,
		assistant: assistant,
		state:     NewStateAccessor(platform, logger),
		subs:      NewSubscriptionManager(platform, logger),
		signer:    NewCallbackSigner([]byte(cfg.SigningSecret), cfg.TokenTTL),
	}
}

// textResponse builds a plain-text acknowledgment.
func textResponse(statusCode int, body string) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       body,
	}
}

// jsonResponse builds a JSON response with a pre-serialized body.
func jsonResponse(statusCode int, body string) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

// headerValue looks up a request header case-insensitively. Function URL
// events deliver header keys lowercased, but tests and proxies may not.
func headerValue(req events.LambdaFunctionURLRequest, name string) string {
	if value, ok := req.Headers[name]; ok {
		return value
	}
	for key, value := range req.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// notifyUser sends a clarifying notification into the conversation from the
// configured sender identity. Best effort: failures are logged only.
func (h *Handlers) notifyUser(ctx context.Context, logger *Logger, ref ConversationRef, body string) {
	message := Message{Body: body, Author: h.cfg.NotifySender}
	if err := h.platform.CreateMessage(ctx, ref, message); err != nil {
		logger.Errorf("Failed to notify user on %s: %v", ref, err)
	}
}

// sendApology posts the generic apology message. Best effort: failures are
// logged only, since this already is the failure path.
func (h *Handlers) sendApology(ctx context.Context, logger *Logger, ref ConversationRef, author string) {
	message := Message{Body: apologyMessage, Author: author}
	if err := h.platform.CreateMessage(ctx, ref, message); err != nil {
		logger.Errorf("Failed to send apology on %s: %v", ref, err)
	}
}

// clearTyping best-effort clears the assistantIsTyping flag so a dispatch
// failure never leaves the conversation stuck in a typing state.
func (h *Handlers) clearTyping(ctx context.Context, logger *Logger, ref ConversationRef) {
	if err := h.state.Merge(ctx, ref, Attributes{attrAssistantIsTyping: false}); err != nil {
		logger.Errorf("Failed to clear typing state on %s: %v", ref, err)
	}
}

package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// MessageAdded routes a new conversation message. The platform's webhook
// caller is always acknowledged with a success, whatever happens downstream:
// the message is already in the conversation regardless of assistant
// reachability.
func (h *Handlers) MessageAdded(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("MESSAGE_ADDED")

	var event ConversationEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode event: %v", err)
		return textResponse(200, "")
	}

	assistantSid := event.AssistantSid
	if assistantSid == "" {
		assistantSid = h.cfg.AssistantSid
	}
	if assistantSid == "" {
		logger.Errorf("No assistant sid configured, dropping message")
		return textResponse(200, "")
	}

	ref := event.Ref()
	identity := QualifyIdentity(event.Author)
	logger.Debugf("Routing message on %s from %s", ref, identity)

	webhooks, err := h.subs.List(ctx, ref)
	if err != nil {
		logger.Errorf("Failed to list webhooks on %s: %v", ref, err)
		return textResponse(200, "")
	}
	participants, err := h.platform.ListParticipants(ctx, ref)
	if err != nil {
		logger.Errorf("Failed to list participants on %s: %v", ref, err)
		return textResponse(200, "")
	}

	state := DeriveConversationState(webhooks, len(participants))
	if state == StateHumanActive {
		// Already escalated or a human joined; repeated events stay a no-op.
		logger.Infof("Conversation %s is %s, ignoring message", ref, state)
		return textResponse(200, "")
	}

	outcome := h.dispatchToAssistant(ctx, logger, ref, assistantSid, event.AssistantIdentity, identity, event.Body, nil)
	logger.Infof("Message on %s handled: %s", ref, outcome)
	return textResponse(200, "")
}

// SendToAssistant re-attaches the assistant to the conversation (swapping any
// existing webhooks for the message-added target) and forwards the given
// message to it. Used to pull a conversation back from a human flow.
func (h *Handlers) SendToAssistant(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("SEND_TO_ASSISTANT")

	var event ConversationEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode event: %v", err)
		return textResponse(200, "")
	}

	if event.AssistantSid == "" {
		logger.Errorf("No assistant sid in event, dropping message")
		return textResponse(200, "")
	}

	ref := event.Ref()
	identity := QualifyIdentity(event.Author)

	configuration := WebhookConfiguration{
		Method:  "POST",
		URL:     h.cfg.MessageAddedURL(),
		Filters: []string{"onMessageAdded"},
	}
	if err := h.subs.Swap(ctx, ref, WebhookTargetAssistant, configuration); err != nil {
		logger.Errorf("Failed to swap webhook to assistant on %s: %v", ref, err)
		return textResponse(200, "")
	}

	// infoUser is pass-through state: an absent value removes any stale one.
	extra := Attributes{attrInfoUser: nil}
	if event.InfoUser != "" {
		extra[attrInfoUser] = event.InfoUser
	}

	outcome := h.dispatchToAssistant(ctx, logger, ref, event.AssistantSid, event.AssistantIdentity, identity, event.Body, extra)
	logger.Infof("Send-to-assistant on %s handled: %s", ref, outcome)
	return textResponse(200, "")
}

// dispatchToAssistant performs the shared tail of the routing paths: mint and
// sign a callback URL, mark the assistant as typing (merging extra attribute
// deltas, if any), and dispatch the message. Dispatch failures are swallowed
// after a best-effort typing cleanup.
func (h *Handlers) dispatchToAssistant(ctx context.Context, logger *Logger, ref ConversationRef, assistantSid, assistantIdentity, identity, body string, extra Attributes) DispatchOutcome {
	sessionID := EncodeSessionID(ref.ServiceSid, ref.ConversationSid)
	token, err := h.signer.Sign(sessionID)
	if err != nil {
		logger.Errorf("Failed to sign callback token for %s: %v", ref, err)
		return OutcomeDegraded
	}

	request := AssistantRequest{
		Body:      body,
		Identity:  identity,
		SessionID: sessionID,
		Webhook:   h.cfg.CallbackURL(token, assistantIdentity),
	}
	logger.Debugf("Assistant request for %s: %+v", ref, request)

	delta := Attributes{attrAssistantIsTyping: true}
	for key, value := range extra {
		delta[key] = value
	}
	if err := h.state.Merge(ctx, ref, delta); err != nil {
		logger.Errorf("Failed to mark typing on %s: %v", ref, err)
		return OutcomeDegraded
	}

	if err := h.assistant.SendMessage(ctx, assistantSid, request); err != nil {
		logger.Errorf("Failed to dispatch to assistant %s: %v", assistantSid, err)
		h.clearTyping(ctx, logger, ref)
		return OutcomeDegraded
	}
	return OutcomeDelivered
}

// CleanAttributes removes the routing and classification keys this service
// owns from the conversation's attributes document, leaving everything else
// untouched. Always acknowledges.
func (h *Handlers) CleanAttributes(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("CLEAN_ATTRIBUTES")

	var event ConversationEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode event: %v", err)
		return textResponse(200, "")
	}

	ref := event.Ref()
	delta := Attributes{
		attrAssistantIsTyping: nil,
		attrIdentifiedService: nil,
		attrIdentifiedArea:    nil,
	}
	if err := h.state.Merge(ctx, ref, delta); err != nil {
		logger.Errorf("Failed to clean attributes on %s: %v", ref, err)
		return textResponse(200, "")
	}

	logger.Infof("Cleaned attributes on %s", ref)
	return textResponse(200, "")
}

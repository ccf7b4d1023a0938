package main

import (
	"context"
	"slices"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"
)

// ToolSendMessage lets the assistant post a templated message mid
// conversation. The caller is the assistant's tool-execution layer, gated by
// the x-session-id header shape rather than the callback token.
func (h *Handlers) ToolSendMessage(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("SEND_MESSAGE")

	serviceSid, conversationSid, err := ParseSessionHeader(headerValue(req, sessionHeaderName))
	if err != nil {
		logger.Errorf("Invalid session header: %v", err)
		return textResponse(200, ignoreToolOutputMessage)
	}
	ref := ConversationRef{ServiceSid: serviceSid, ConversationSid: conversationSid}

	var event ToolEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode tool event: %v", err)
		return textResponse(400, "Unable to send message")
	}

	if event.ContentSid == "" {
		logger.Errorf("Missing content sid in send-message tool call on %s", ref)
		return textResponse(400, "Unable to send message")
	}

	message := Message{
		Author:           event.AssistantIdentity,
		ContentSid:       event.ContentSid,
		ContentVariables: event.ContentVariablesString(),
	}
	if err := h.platform.CreateMessage(ctx, ref, message); err != nil {
		// Soft failure: the tool layer gets an empty result, not an error.
		logger.Errorf("Failed to send templated message on %s: %v", ref, err)
		return jsonResponse(200, "{}")
	}

	logger.Infof("Sent templated message %s on %s", event.ContentSid, ref)
	return textResponse(200, event.SuccessMessageOr("Message sent"))
}

// ToolHandover transfers routing ownership of the conversation to a human
// flow. The assistant must have classified the conversation into a known
// service and area first; otherwise the handover aborts, the user gets a
// clarifying notification distinct per failing field, and no webhook is
// touched.
func (h *Handlers) ToolHandover(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("STUDIO_HANDOVER")

	serviceSid, conversationSid, err := ParseSessionHeader(headerValue(req, sessionHeaderName))
	if err != nil {
		logger.Errorf("Invalid session header: %v", err)
		return textResponse(200, ignoreToolOutputMessage)
	}
	ref := ConversationRef{ServiceSid: serviceSid, ConversationSid: conversationSid}

	var event ToolEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode tool event: %v", err)
		return textResponse(400, "Unable to hand over conversation")
	}

	flowSid := event.FlowSidOr(h.cfg.DefaultFlowSid)
	if flowSid == "" {
		logger.Errorf("Missing flow sid in handover tool call on %s", ref)
		return textResponse(400, "Unable to hand over conversation")
	}

	valid := true
	if !slices.Contains(h.cfg.IdentifiedServices, event.IdentifiedService) {
		logger.Errorf("Unknown identified service %q on %s", event.IdentifiedService, ref)
		h.notifyUser(ctx, logger, ref, unknownServiceMessage)
		valid = false
	}
	if !slices.Contains(h.cfg.IdentifiedAreas, event.IdentifiedArea) {
		logger.Errorf("Unknown identified area %q on %s", event.IdentifiedArea, ref)
		h.notifyUser(ctx, logger, ref, unknownAreaMessage)
		valid = false
	}
	if !valid {
		return textResponse(400, "Unable to hand over conversation")
	}

	webhooks, err := h.subs.List(ctx, ref)
	if err != nil {
		logger.Errorf("Failed to list webhooks on %s: %v", ref, err)
		return textResponse(200, "Could not handover")
	}
	if err := h.subs.RemoveAll(ctx, ref, webhooks); err != nil {
		logger.Errorf("Partial webhook removal on %s, proceeding: %v", ref, err)
	}

	// The classification merge and the flow webhook creation are independent,
	// so they run together.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		delta := Attributes{
			attrIdentifiedService: event.IdentifiedService,
			attrIdentifiedArea:    event.IdentifiedArea,
		}
		return h.state.Merge(groupCtx, ref, delta)
	})
	group.Go(func() error {
		configuration := WebhookConfiguration{FlowSid: flowSid}
		return h.platform.CreateWebhook(groupCtx, ref, WebhookTargetStudio, configuration)
	})
	if err := group.Wait(); err != nil {
		logger.Errorf("Failed to hand over %s to flow %s: %v", ref, flowSid, err)
		return textResponse(200, "Could not handover")
	}

	logger.Infof("Handed over %s to flow %s (service %q, area %q)", ref, flowSid, event.IdentifiedService, event.IdentifiedArea)
	return textResponse(200, event.SuccessMessageOr("Conversation handed over"))
}

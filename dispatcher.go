package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// AssistantResponse consumes the assistant's asynchronous callback. Contrary
// to the platform-facing routes, this path surfaces failures to its caller:
// authentication and malformed-session failures reject the request outright
// with no state touched, and any failure after verification still produces a
// best-effort apology so the end user is never left without a response.
func (h *Handlers) AssistantResponse(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	logger := h.logger.WithModule("RESPONSE_AI")

	var event AssistantCallbackEvent
	if err := decodeEvent(req, &event); err != nil {
		logger.Errorf("Failed to decode callback: %v", err)
		return textResponse(400, "Malformed callback")
	}
	event.AssistantIdentity = req.QueryStringParameters["_assistantIdentity"]

	serviceSid, conversationSid, err := ParseSessionID(event.SessionID)
	if err != nil {
		logger.Errorf("Malformed session id in callback: %v", err)
		return textResponse(400, "Malformed session id")
	}
	ref := ConversationRef{ServiceSid: serviceSid, ConversationSid: conversationSid}

	token := req.QueryStringParameters["_token"]
	if err := h.signer.Verify(token, EncodeSessionID(serviceSid, conversationSid)); err != nil {
		logger.Errorf("Invalid callback token for %s: %v", ref, err)
		return textResponse(401, "Invalid token")
	}

	if event.Failed() {
		logger.Errorf("Assistant reported failure for %s (status %q)", ref, event.Status)
		h.clearTyping(ctx, logger, ref)
		h.sendApology(ctx, logger, ref, event.AssistantIdentity)
		return textResponse(502, "Failed to generate response")
	}

	reply := ParseAssistantReply(event.BodyString())
	logger.Debugf("Assistant reply for %s: structured=%t", ref, reply.Structured())

	if err := h.state.Merge(ctx, ref, Attributes{attrAssistantIsTyping: false}); err != nil {
		logger.Errorf("Failed to clear typing state on %s: %v", ref, err)
		h.sendApology(ctx, logger, ref, event.AssistantIdentity)
		return textResponse(500, "Failed to process response")
	}

	if err := h.postReply(ctx, ref, event.AssistantIdentity, reply); err != nil {
		logger.Errorf("Failed to post reply on %s: %v", ref, err)
		h.sendApology(ctx, logger, ref, event.AssistantIdentity)
		return textResponse(500, "Failed to process response")
	}

	logger.Infof("Posted assistant reply on %s", ref)
	return jsonResponse(200, "{}")
}

// postReply delivers the assistant's reply. Structured content is not always
// renderable by every client surface, so the templated message is followed by
// the plain-text body as a second message.
func (h *Handlers) postReply(ctx context.Context, ref ConversationRef, author string, reply AssistantReply) error {
	if reply.Structured() {
		templated := Message{
			Author:           author,
			ContentSid:       reply.ContentSid,
			ContentVariables: reply.ContentVariables,
		}
		if err := h.platform.CreateMessage(ctx, ref, templated); err != nil {
			return err
		}
	}
	return h.platform.CreateMessage(ctx, ref, Message{Body: reply.Body, Author: author})
}

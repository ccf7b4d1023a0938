package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type RouterTestSuite struct {
	suite.Suite

	platform  *fakePlatform
	assistant *fakeAssistant
	handlers  *Handlers
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	s.platform = newFakePlatform()
	s.assistant = newFakeAssistant()
	s.handlers = NewHandlers(testConfig(s.platform, s.assistant), NewLogger("TEST"))
}

func (s *RouterTestSuite) TearDownTest() {
	s.platform.Close()
	s.assistant.Close()
}

func (s *RouterTestSuite) messageAddedEvent() map[string]string {
	return map[string]string{
		"ConversationSid": "CH0001",
		"ChatServiceSid":  "IS0001",
		"Author":          "usr123",
		"Body":            "hola, necesito ayuda",
	}
}

func (s *RouterTestSuite) TestDispatchesToAssistant() {
	s.platform.setWebhook(WebhookTargetAssistant, WebhookConfiguration{})
	s.platform.setParticipants("usr123")

	resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, s.messageAddedEvent(), nil, nil))
	s.Equal(200, resp.StatusCode)

	requests := s.assistant.getRequests()
	s.Require().Len(requests, 1)
	s.Equal("hola, necesito ayuda", requests[0].Body)
	s.Equal("user_id:usr123", requests[0].Identity)
	s.Equal("conversations__IS0001/CH0001", requests[0].SessionID)
	s.Contains(requests[0].Webhook, "https://bridge.test.example.com/channels/conversations/response?_token=")

	s.Equal(true, s.platform.getAttributes()[attrAssistantIsTyping])
}

func (s *RouterTestSuite) TestCallbackTokenIsVerifiable() {
	s.platform.setParticipants("usr123")

	resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, s.messageAddedEvent(), nil, nil))
	s.Equal(200, resp.StatusCode)

	requests := s.assistant.getRequests()
	s.Require().Len(requests, 1)

	token := tokenFromCallbackURL(s.T(), requests[0].Webhook)
	s.NoError(s.handlers.signer.Verify(token, requests[0].SessionID))
}

func (s *RouterTestSuite) TestIgnoresEscalatedConversation() {
	s.platform.setWebhook(WebhookTargetStudio, WebhookConfiguration{FlowSid: "FW0001"})
	s.platform.setParticipants("usr123")
	s.platform.setAttributes(Attributes{"keep": "me"})

	// Repeated events stay a no-op: no dispatch, no attribute mutation.
	for range 3 {
		resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, s.messageAddedEvent(), nil, nil))
		s.Equal(200, resp.StatusCode)
	}

	s.Empty(s.assistant.getRequests())
	s.Equal(Attributes{"keep": "me"}, s.platform.getAttributes())
}

func (s *RouterTestSuite) TestIgnoresConversationWithHumanParticipant() {
	s.platform.setWebhook(WebhookTargetAssistant, WebhookConfiguration{})
	s.platform.setParticipants("usr123", "agent456")

	resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, s.messageAddedEvent(), nil, nil))
	s.Equal(200, resp.StatusCode)

	s.Empty(s.assistant.getRequests())
	s.Empty(s.platform.getAttributes())
}

func (s *RouterTestSuite) TestAcknowledgesWhenAssistantUnreachable() {
	s.platform.setWebhook(WebhookTargetAssistant, WebhookConfiguration{})
	s.platform.setParticipants("usr123")
	s.assistant.setStatus(400)

	resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, s.messageAddedEvent(), nil, nil))
	s.Equal(200, resp.StatusCode)

	// Typing was set and then cleared on the failure path.
	s.Equal(false, s.platform.getAttributes()[attrAssistantIsTyping])
}

func (s *RouterTestSuite) TestAcknowledgesMalformedEvent() {
	resp := s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, "{broken", nil, nil))
	s.Equal(200, resp.StatusCode)
	s.Empty(s.assistant.getRequests())
}

func (s *RouterTestSuite) TestNamespacedAuthorPassesThrough() {
	s.platform.setParticipants("whatsapp:+5215500000000")
	event := s.messageAddedEvent()
	event["Author"] = "whatsapp:+5215500000000"

	s.handlers.MessageAdded(context.Background(), newURLRequest(pathMessageAdded, event, nil, nil))

	requests := s.assistant.getRequests()
	s.Require().Len(requests, 1)
	s.Equal("whatsapp:+5215500000000", requests[0].Identity)
}

func (s *RouterTestSuite) TestSendToAssistantSwapsWebhookBack() {
	s.platform.setWebhook(WebhookTargetStudio, WebhookConfiguration{FlowSid: "FW0001"})
	s.platform.setAttributes(Attributes{attrInfoUser: "stale", attrIdentifiedService: "banking"})

	event := map[string]string{
		"ConversationSid": "CH0001",
		"ChatServiceSid":  "IS0001",
		"Author":          "usr123",
		"Body":            "quiero volver con el bot",
		"AssistantSid":    "AI0001",
		"InfoUser":        "premium",
	}
	resp := s.handlers.SendToAssistant(context.Background(), newURLRequest(pathSendToAssistant, event, nil, nil))
	s.Equal(200, resp.StatusCode)

	webhooks := s.platform.getWebhooks()
	s.Require().Len(webhooks, 1)
	s.Equal(WebhookTargetAssistant, webhooks[0].Target)
	s.Equal("https://bridge.test.example.com/channels/conversations/messageAdded", webhooks[0].Configuration.URL)
	s.Equal([]string{"onMessageAdded"}, webhooks[0].Configuration.Filters)

	attributes := s.platform.getAttributes()
	s.Equal(true, attributes[attrAssistantIsTyping])
	s.Equal("premium", attributes[attrInfoUser])
	s.Equal("banking", attributes[attrIdentifiedService])

	requests := s.assistant.getRequests()
	s.Require().Len(requests, 1)
	s.Equal("quiero volver con el bot", requests[0].Body)
}

func (s *RouterTestSuite) TestSendToAssistantClearsStaleInfoUser() {
	s.platform.setAttributes(Attributes{attrInfoUser: "stale"})

	event := map[string]string{
		"ConversationSid": "CH0001",
		"ChatServiceSid":  "IS0001",
		"Author":          "usr123",
		"Body":            "hola",
		"AssistantSid":    "AI0001",
	}
	s.handlers.SendToAssistant(context.Background(), newURLRequest(pathSendToAssistant, event, nil, nil))

	s.NotContains(s.platform.getAttributes(), attrInfoUser)
}

func (s *RouterTestSuite) TestSendToAssistantRequiresAssistantSid() {
	resp := s.handlers.SendToAssistant(context.Background(), newURLRequest(pathSendToAssistant, s.messageAddedEvent(), nil, nil))
	s.Equal(200, resp.StatusCode)
	s.Empty(s.assistant.getRequests())
	s.Empty(s.platform.getWebhooks())
}

func (s *RouterTestSuite) TestCleanAttributes() {
	s.platform.setAttributes(Attributes{
		attrAssistantIsTyping: true,
		attrIdentifiedService: "banking",
		attrIdentifiedArea:    "claims",
		attrInfoUser:          "premium",
	})

	event := map[string]string{"ConversationSid": "CH0001", "ChatServiceSid": "IS0001"}
	resp := s.handlers.CleanAttributes(context.Background(), newURLRequest(pathCleanAttributes, event, nil, nil))
	s.Equal(200, resp.StatusCode)

	attributes := s.platform.getAttributes()
	s.NotContains(attributes, attrAssistantIsTyping)
	s.NotContains(attributes, attrIdentifiedService)
	s.NotContains(attributes, attrIdentifiedArea)
	s.Equal("premium", attributes[attrInfoUser])
}

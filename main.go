package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// Route paths served by the Lambda Function URL.
const (
	pathMessageAdded    = "/channels/conversations/messageAdded"
	pathResponse        = "/channels/conversations/response"
	pathSendToAssistant = "/channels/conversations/send-to-assistant"
	pathCleanAttributes = "/channels/conversations/clean-attributes"
	pathToolSendMessage = "/tools/send-message"
	pathToolHandover    = "/tools/studio-handover"
)

// HandlerService contains dependencies for the Lambda handler.
type HandlerService struct {
	logger   *Logger
	handlers *Handlers
}

// NewHandlerService creates a new HandlerService from the environment.
func NewHandlerService(ctx context.Context) (*HandlerService, error) {
	logger := NewLogger("BRIDGE")
	cfg, err := LoadConfig(ctx, logger)
	if err != nil {
		return nil, err
	}
	return &HandlerService{
		logger:   logger,
		handlers: NewHandlers(cfg, logger),
	}, nil
}

func handler(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	service, err := NewHandlerService(ctx)
	if err != nil {
		// Configuration failures still answer the webhook caller.
		NewLogger("BRIDGE").Errorf("Failed to initialize: %v", err)
		return textResponse(500, "Service unavailable"), nil
	}
	return service.Handle(ctx, req), nil
}

// Handle routes the inbound request by path. Every path answers the caller;
// only the assistant-callback path surfaces failures as error statuses.
func (s *HandlerService) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	s.logger.Debugf("Received %s %s", req.RequestContext.HTTP.Method, path)

	switch path {
	case pathMessageAdded:
		return s.handlers.MessageAdded(ctx, req)
	case pathResponse:
		return s.handlers.AssistantResponse(ctx, req)
	case pathSendToAssistant:
		return s.handlers.SendToAssistant(ctx, req)
	case pathCleanAttributes:
		return s.handlers.CleanAttributes(ctx, req)
	case pathToolSendMessage:
		return s.handlers.ToolSendMessage(ctx, req)
	case pathToolHandover:
		return s.handlers.ToolHandover(ctx, req)
	}

	s.logger.Errorf("Unknown path: %s", path)
	return textResponse(404, "Not found")
}

func main() {
	lambda.Start(handler)
}

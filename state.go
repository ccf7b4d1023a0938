package main

// ConversationState is the routing ownership of a conversation, derived once
// per event from the webhook list and participant count instead of being
// re-interpreted ad hoc by every handler.
type ConversationState int

const (
	// StateBotActive: the assistant owns the conversation.
	StateBotActive ConversationState = iota
	// StateEscalating: no webhook is attached; the conversation is inside a
	// swap window. Messages arriving here are routed to the assistant so the
	// channel never goes silent mid-transition.
	StateEscalating
	// StateHumanActive: a flow webhook is attached or a second participant
	// joined; the assistant must stay out.
	StateHumanActive
)

func (s ConversationState) String() string {
	switch s {
	case StateBotActive:
		return "bot-active"
	case StateEscalating:
		return "escalating"
	case StateHumanActive:
		return "human-active"
	}
	return "unknown"
}

// DeriveConversationState classifies the conversation from its webhooks and
// participant count. A studio webhook or more than one participant means a
// human owns the channel.
func DeriveConversationState(webhooks []Webhook, participantCount int) ConversationState {
	if HasTarget(webhooks, WebhookTargetStudio) {
		return StateHumanActive
	}
	if participantCount > 1 {
		return StateHumanActive
	}
	if len(webhooks) == 0 {
		return StateEscalating
	}
	return StateBotActive
}

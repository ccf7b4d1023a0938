package main

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SubscriptionManager enforces the single-active-subscriber invariant over a
// conversation's webhooks: at any instant at most one of the assistant
// callback or the human flow engine should receive new messages. There is no
// compare-and-swap on the platform, so every transition follows a strict
// remove-then-create protocol. The brief window with no webhook at all is
// accepted: a message arriving inside it is simply not routed.
type SubscriptionManager struct {
	platform *PlatformClient
	logger   *Logger
}

// NewSubscriptionManager creates a subscription manager over the given
// platform client.
func NewSubscriptionManager(platform *PlatformClient, logger *Logger) *SubscriptionManager {
	return &SubscriptionManager{platform: platform, logger: logger}
}

// List returns the conversation's current webhooks.
func (m *SubscriptionManager) List(ctx context.Context, ref ConversationRef) ([]Webhook, error) {
	return m.platform.ListWebhooks(ctx, ref)
}

// RemoveAll removes every webhook on the conversation, firing the removals
// concurrently and waiting for all of them.
func (m *SubscriptionManager) RemoveAll(ctx context.Context, ref ConversationRef, webhooks []Webhook) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, webhook := range webhooks {
		group.Go(func() error {
			return m.platform.RemoveWebhook(groupCtx, ref, webhook.Sid)
		})
	}
	return group.Wait()
}

// Swap transitions the conversation to a single webhook of the given target
// kind: list existing webhooks, remove them all, then create the new one.
// Partial removal failures are logged but not rolled back; the creation
// proceeds regardless.
func (m *SubscriptionManager) Swap(ctx context.Context, ref ConversationRef, target string, configuration WebhookConfiguration) error {
	webhooks, err := m.List(ctx, ref)
	if err != nil {
		return err
	}

	if err := m.RemoveAll(ctx, ref, webhooks); err != nil {
		m.logger.Errorf("Partial webhook removal on %s, proceeding with create: %v", ref, err)
	}

	return m.platform.CreateWebhook(ctx, ref, target, configuration)
}

// HasTarget reports whether any webhook of the given target kind exists.
func HasTarget(webhooks []Webhook, target string) bool {
	for _, webhook := range webhooks {
		if webhook.Target == target {
			return true
		}
	}
	return false
}

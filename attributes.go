package main

import (
	"context"
	"encoding/json"
	"fmt"
)

// Attribute keys recognized by this service. Everything else in the document
// is pass-through state owned by other collaborators.
const (
	attrAssistantIsTyping = "assistantIsTyping"
	attrIdentifiedService = "identifiedService"
	attrIdentifiedArea    = "identifiedArea"
	attrInfoUser          = "infoUser"
)

// Attributes is the conversation's shared JSON state document.
type Attributes map[string]any

// StateAccessor is a read-modify-write wrapper over the conversation's
// attributes document. The platform offers no partial update: every mutation
// is a full read, a shallow merge of the caller's delta, and a full
// overwrite. Last writer wins at document granularity, so callers must keep
// the window between read and write small and merge only the keys they mean
// to change.
type StateAccessor struct {
	platform *PlatformClient
	logger   *Logger
}

// NewStateAccessor creates a state accessor over the given platform client.
func NewStateAccessor(platform *PlatformClient, logger *Logger) *StateAccessor {
	return &StateAccessor{platform: platform, logger: logger}
}

// Read fetches and parses the conversation's attributes document. An empty or
// missing document yields an empty map.
func (a *StateAccessor) Read(ctx context.Context, ref ConversationRef) (Attributes, error) {
	conversation, err := a.platform.GetConversation(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("error reading conversation %s: %v", ref, err)
	}

	attributes := Attributes{}
	if conversation.Attributes != "" {
		if err := json.Unmarshal([]byte(conversation.Attributes), &attributes); err != nil {
			return nil, fmt.Errorf("error parsing attributes of conversation %s: %v", ref, err)
		}
	}
	return attributes, nil
}

// Merge applies a shallow delta to the attributes document and writes the
// result back. A nil value in the delta removes the key; untouched keys are
// preserved. The read happens immediately before the write to keep the
// lost-update window as narrow as possible.
func (a *StateAccessor) Merge(ctx context.Context, ref ConversationRef, delta Attributes) error {
	attributes, err := a.Read(ctx, ref)
	if err != nil {
		return err
	}

	for key, value := range delta {
		if value == nil {
			delete(attributes, key)
			continue
		}
		attributes[key] = value
	}

	merged, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("error marshalling attributes of conversation %s: %v", ref, err)
	}

	if err := a.platform.UpdateAttributes(ctx, ref, string(merged)); err != nil {
		return fmt.Errorf("error updating attributes of conversation %s: %v", ref, err)
	}
	a.logger.Debugf("Merged attributes on %s: %s", ref, string(merged))
	return nil
}

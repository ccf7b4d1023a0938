package main

import (
	"fmt"
	"strings"
)

const (
	// sessionNamespace prefixes every session id handed to the assistant.
	sessionNamespace = "conversations__"
	// sessionHeaderPrefix is the form the assistant's tool-execution layer
	// echoes back in the x-session-id header.
	sessionHeaderPrefix = "webhook:" + sessionNamespace
	// sessionHeaderName carries the session id on tool invocations.
	sessionHeaderName = "x-session-id"
)

// ErrMalformedSession is returned when a session id cannot be parsed back
// into its service/conversation pair.
var ErrMalformedSession = fmt.Errorf("malformed session id")

// EncodeSessionID builds the session id embedded in outbound assistant
// requests. It is the only linkage between the assistant's asynchronous
// callback and the originating conversation.
func EncodeSessionID(serviceSid, conversationSid string) string {
	return sessionNamespace + serviceSid + "/" + conversationSid
}

// ParseSessionID decodes a session id back into (serviceSid, conversationSid).
// Accepts both the bare form sent outbound ("conversations__S/C") and the
// "webhook:"-prefixed form the assistant echoes back. Parsing is exact: the
// fixed literal prefix is stripped and the remainder is split once on "/".
func ParseSessionID(sessionID string) (serviceSid, conversationSid string, err error) {
	s := strings.TrimPrefix(sessionID, "webhook:")
	if !strings.HasPrefix(s, sessionNamespace) {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSession, sessionID)
	}
	s = strings.TrimPrefix(s, sessionNamespace)

	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSession, sessionID)
	}
	return parts[0], parts[1], nil
}

// ParseSessionHeader validates and decodes the x-session-id header used by the
// tool invocation endpoints. The header must carry the full "webhook:"
// prefixed form; anything else is rejected.
func ParseSessionHeader(value string) (serviceSid, conversationSid string, err error) {
	if !strings.HasPrefix(value, sessionHeaderPrefix) {
		return "", "", fmt.Errorf("%w: header %q", ErrMalformedSession, value)
	}
	return ParseSessionID(value)
}

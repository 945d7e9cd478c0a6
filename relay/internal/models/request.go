package models

import (
	"encoding/json"
	"time"
)

// RequestType is the Socket Mode envelope type.
type RequestType string

const (
	RequestEventsAPI     RequestType = "events_api"
	RequestSlashCommands RequestType = "slash_commands"
	RequestInteractive   RequestType = "interactive"
)

// Known reports whether t is one of the routed request types.
func (t RequestType) Known() bool {
	switch t {
	case RequestEventsAPI, RequestSlashCommands, RequestInteractive:
		return true
	}
	return false
}

// EventType is the discriminator of a nested Events API event.
type EventType string

const (
	EventMessage             EventType = "message"
	EventReactionAdded       EventType = "reaction_added"
	EventMemberJoinedChannel EventType = "member_joined_channel"
)

// InboundRequest is one decoded Socket Mode envelope.
type InboundRequest struct {
	EnvelopeID             string          `json:"envelope_id"`
	Type                   RequestType     `json:"type"`
	Payload                json.RawMessage `json:"payload,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	RetryAttempt           int             `json:"retry_attempt,omitempty"`
	RetryReason            string          `json:"retry_reason,omitempty"`
}

// NormalizedEvent is the canonical notification shape handed to the webhook.
// Fields present depend on the "type" discriminator.
type NormalizedEvent map[string]interface{}

// Delivery is the output of normalization and the input of dispatch.
type Delivery struct {
	EnvelopeID  string
	RequestType RequestType
	EventType   string
	TeamID      string
	Event       NormalizedEvent
	// Native is the request payload exactly as received. Empty when the
	// request did not carry a non-empty payload object.
	Native json.RawMessage
}

// HasNative reports whether the original payload can be forwarded as-is.
func (d *Delivery) HasNative() bool {
	return d != nil && len(d.Native) > 0
}

// DispatchResult describes one webhook attempt. Observability only.
type DispatchResult struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Err        error
}

// OK reports whether the webhook accepted the delivery.
func (r DispatchResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

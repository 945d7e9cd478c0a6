package logging

import "log/slog"

// Common field names for consistent logging across the relay.
const (
	FieldService     = "service"
	FieldEnvelopeID  = "envelope_id"
	FieldRequestType = "request_type"
	FieldEventType   = "event_type"
	FieldTeamID      = "team_id"
	FieldChannel     = "channel"
	FieldUser        = "user"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EnvelopeID returns a slog attribute for a Socket Mode envelope id.
func EnvelopeID(id string) slog.Attr {
	return slog.String(FieldEnvelopeID, id)
}

// RequestType returns a slog attribute for the inbound request type.
func RequestType(t string) slog.Attr {
	return slog.String(FieldRequestType, t)
}

// EventType returns a slog attribute for the event discriminator.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// TeamID returns a slog attribute for the workspace id.
func TeamID(id string) slog.Attr {
	return slog.String(FieldTeamID, id)
}

// Channel returns a slog attribute for a channel id or name.
func Channel(ch string) slog.Attr {
	return slog.String(FieldChannel, ch)
}

// User returns a slog attribute for a user id or name.
func User(u string) slog.Attr {
	return slog.String(FieldUser, u)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

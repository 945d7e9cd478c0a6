package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestStringFieldHelpers(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"Service", Service("relay"), FieldService, "relay"},
		{"EnvelopeID", EnvelopeID("env-123"), FieldEnvelopeID, "env-123"},
		{"RequestType", RequestType("events_api"), FieldRequestType, "events_api"},
		{"EventType", EventType("message"), FieldEventType, "message"},
		{"TeamID", TeamID("T1"), FieldTeamID, "T1"},
		{"Channel", Channel("C1"), FieldChannel, "C1"},
		{"User", User("U1"), FieldUser, "U1"},
		{"Error", Error(errors.New("boom")), FieldError, "boom"},
		{"Error nil", Error(nil), FieldError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.value {
				t.Errorf("expected value %q, got %q", tt.value, tt.attr.Value.String())
			}
		})
	}
}

func TestIntFieldHelpers(t *testing.T) {
	if attr := Status(502); attr.Key != FieldStatus || attr.Value.Int64() != 502 {
		t.Errorf("Status() = %v", attr)
	}
	if attr := Duration(1234); attr.Key != FieldDuration || attr.Value.Int64() != 1234 {
		t.Errorf("Duration() = %v", attr)
	}
}

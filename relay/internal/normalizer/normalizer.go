// Package normalizer turns Socket Mode requests into webhook deliveries.
package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/directory"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

// Normalizer classifies inbound requests and builds the normalized payload.
type Normalizer struct {
	dir    directory.Directory
	logger *logging.Logger
}

func New(dir directory.Directory, logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Normalizer{dir: dir, logger: logger}
}

// Normalize returns the delivery for req. A nil delivery with a nil error
// means the request needs no webhook call: bot-authored events and unknown
// request types.
func (n *Normalizer) Normalize(ctx context.Context, req *models.InboundRequest) (*models.Delivery, error) {
	switch req.Type {
	case models.RequestEventsAPI:
		return n.eventsAPI(ctx, req)
	case models.RequestSlashCommands, models.RequestInteractive:
		return n.passthrough(req)
	default:
		n.logger.DebugContext(ctx, "unhandled request type", logging.RequestType(string(req.Type)))
		return nil, nil
	}
}

func (n *Normalizer) eventsAPI(ctx context.Context, req *models.InboundRequest) (*models.Delivery, error) {
	payload, err := decodeObject(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode events_api payload: %w", err)
	}

	event, _ := payload["event"].(map[string]interface{})
	if event == nil {
		event = map[string]interface{}{}
	}
	eventType := str(event["type"])

	n.logger.InfoContext(ctx, "received event", logging.EventType(eventType))

	if IsBotEvent(event) {
		n.logger.DebugContext(ctx, "ignoring bot event", logging.EventType(eventType))
		return nil, nil
	}

	teamID := teamOf(payload)
	d := &models.Delivery{
		EnvelopeID:  req.EnvelopeID,
		RequestType: req.Type,
		EventType:   eventType,
		TeamID:      teamID,
		Native:      nativeOf(req.Payload, payload),
	}

	switch models.EventType(eventType) {
	case models.EventMessage:
		d.Event = n.message(ctx, event, teamID)
	case models.EventReactionAdded:
		d.Event = models.NormalizedEvent{
			"type":       eventType,
			"event_type": eventType,
			"reaction":   event["reaction"],
			"user":       event["user"],
			"item":       event["item"],
			"raw_event":  event,
			"team_id":    teamID,
		}
		n.logger.InfoContext(ctx, "processed reaction",
			slog.String("reaction", str(event["reaction"])), logging.User(str(event["user"])))
	case models.EventMemberJoinedChannel:
		d.Event = models.NormalizedEvent{
			"type":       eventType,
			"event_type": eventType,
			"user":       event["user"],
			"channel":    event["channel"],
			"raw_event":  event,
			"team_id":    teamID,
		}
		n.logger.InfoContext(ctx, "processed member join",
			logging.User(str(event["user"])), logging.Channel(str(event["channel"])))
	default:
		d.Event = models.NormalizedEvent{
			"type":  eventType,
			"event": event,
		}
	}
	return d, nil
}

func (n *Normalizer) message(ctx context.Context, event map[string]interface{}, teamID string) models.NormalizedEvent {
	channel := str(event["channel"])
	user := str(event["user"])
	text := str(event["text"])

	channelName := directory.ResolveChannelName(ctx, n.dir, channel, n.logger)
	username, email := directory.ResolveUser(ctx, n.dir, user, n.logger)

	msg := models.NormalizedEvent{
		"type":         string(models.EventMessage),
		"event_type":   string(models.EventMessage),
		"channel":      channel,
		"channel_name": channelName,
		"user":         user,
		"username":     username,
		"text":         text,
		"timestamp":    event["ts"],
		"raw_event":    event,
		"team_id":      teamID,
	}
	// omitted, never null, when unknown
	if email != "" {
		msg["user_email"] = email
	}

	n.logger.InfoContext(ctx, "processed message",
		logging.User(username), logging.Channel(channelName), slog.String("text", truncate(text, 50)))
	return msg
}

// passthrough forwards slash commands and interactive payloads untouched.
func (n *Normalizer) passthrough(req *models.InboundRequest) (*models.Delivery, error) {
	payload, err := decodeObject(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", req.Type, err)
	}

	eventType := str(payload["type"])
	if req.Type == models.RequestSlashCommands {
		eventType = str(payload["command"])
	}

	return &models.Delivery{
		EnvelopeID:  req.EnvelopeID,
		RequestType: req.Type,
		EventType:   eventType,
		TeamID:      teamOf(payload),
		Event:       models.NormalizedEvent(payload),
		Native:      nativeOf(req.Payload, payload),
	}, nil
}

// IsBotEvent reports whether event was authored by a bot. Such events are never
// forwarded so the relay cannot feed its own output back into the workflow.
func IsBotEvent(event map[string]interface{}) bool {
	if v, ok := event["bot_id"]; ok && v != nil && v != "" && v != false {
		return true
	}
	return str(event["subtype"]) == "bot_message"
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]interface{}{}
	}
	return obj, nil
}

// nativeOf keeps the raw bytes only for a non-empty object.
func nativeOf(raw json.RawMessage, decoded map[string]interface{}) json.RawMessage {
	if len(decoded) == 0 {
		return nil
	}
	return raw
}

// teamOf finds the workspace id: team_id for events and slash commands,
// team.id for interactive payloads.
func teamOf(payload map[string]interface{}) string {
	if id := str(payload["team_id"]); id != "" {
		return id
	}
	if team, ok := payload["team"].(map[string]interface{}); ok {
		return str(team["id"])
	}
	return ""
}

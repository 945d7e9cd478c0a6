// Package mirror publishes forwarded deliveries to NATS so other services can
// observe relay traffic. Publishing is fire-and-forget on core NATS.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

// Publisher mirrors a delivery somewhere other than the webhook.
type Publisher interface {
	Publish(ctx context.Context, d *models.Delivery) error
	Close() error
}

// Noop discards everything. Used when mirroring is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, *models.Delivery) error { return nil }
func (Noop) Close() error                                    { return nil }

// Message is the JSON body published for each delivery.
type Message struct {
	EnvelopeID  string                 `json:"envelope_id,omitempty"`
	RequestType string                 `json:"request_type"`
	EventType   string                 `json:"event_type,omitempty"`
	TeamID      string                 `json:"team_id,omitempty"`
	Event       models.NormalizedEvent `json:"event,omitempty"`
	Payload     json.RawMessage        `json:"payload,omitempty"`
}

type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes to <prefix>.<request_type>.<event_type>.
type NATSPublisher struct {
	conn   conn
	prefix string
}

// NewNATSPublisher connects to the NATS server in cfg.
func NewNATSPublisher(cfg Config, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	name := cfg.Name
	if name == "" {
		name = "telhawk-relay"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newPublisher(nc, cfg.SubjectPrefix), nil
}

func newPublisher(c conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "relay.events"
	}
	return &NATSPublisher{conn: c, prefix: prefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, d *models.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		EnvelopeID:  d.EnvelopeID,
		RequestType: string(d.RequestType),
		EventType:   d.EventType,
		TeamID:      d.TeamID,
		Event:       d.Event,
		Payload:     d.Native,
	})
	if err != nil {
		return fmt.Errorf("marshal mirror message: %w", err)
	}
	return p.conn.Publish(Subject(p.prefix, d), data)
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Subject builds the NATS subject for d. Tokens are sanitized so slash
// command names such as "/deploy" stay a single subject token.
func Subject(prefix string, d *models.Delivery) string {
	return prefix + "." + token(string(d.RequestType)) + "." + token(d.EventType)
}

func token(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '\n', '\r', '*', '>':
			return '_'
		case '/':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}

// Package socketmode maintains the Slack Socket Mode connection: it opens a
// websocket URL, acknowledges every envelope as soon as it is read and hands
// the request to a Handler on its own goroutine.
package socketmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/slack-go/slack"
	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var errServerDisconnect = errors.New("server requested disconnect")

// Slack errors from apps.connections.open that retrying cannot fix.
var fatalCodes = map[string]bool{
	"invalid_auth":           true,
	"not_authed":             true,
	"account_inactive":       true,
	"token_revoked":          true,
	"not_allowed_token_type": true,
}

// Opener obtains a websocket URL; *slack.Client satisfies it when created
// with slack.OptionAppLevelToken.
type Opener interface {
	StartSocketModeContext(ctx context.Context) (*slack.SocketModeConnection, string, error)
}

// Handler routes one acknowledged request.
type Handler interface {
	Handle(ctx context.Context, req *models.InboundRequest)
}

type Config struct {
	ReconnectWait time.Duration
	AckTimeout    time.Duration
	ShutdownGrace time.Duration
}

type Client struct {
	cfg     Config
	opener  Opener
	handler Handler
	dialer  *websocket.Dialer
	logger  *logging.Logger

	state    atomic.Int32
	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

func New(cfg Config, opener Opener, handler Handler, logger *logging.Logger) *Client {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		cfg:     cfg,
		opener:  opener,
		handler: handler,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Ready reports whether Slack has greeted the current connection.
func (c *Client) Ready() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	metrics.ConnectionState.Set(float64(s))
}

// Run keeps a connection open until ctx is cancelled or Slack rejects the
// credentials. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)
	defer c.waitInflight()

	for {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if isFatal(err) {
			c.logger.Error("socket mode connection failed permanently", logging.Error(err))
			return err
		}

		c.logger.Warn("socket mode connection lost, reconnecting",
			logging.Error(err), slog.Duration("wait", c.cfg.ReconnectWait))
		metrics.ReconnectsTotal.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectWait):
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	_, wsURL, err := c.opener.StartSocketModeContext(ctx)
	if err != nil {
		return fmt.Errorf("apps.connections.open: %w", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial socket mode: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	return c.readLoop(ctx, conn)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read socket mode frame: %w", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("discarding undecodable socket mode frame", logging.Error(err))
			continue
		}

		switch f.Type {
		case frameHello:
			c.setState(StateConnected)
			c.logger.Info("slack socket mode connected",
				slog.String("app_id", f.ConnectionInfo.AppID),
				slog.Int("num_connections", f.NumConnections))
		case frameDisconnect:
			c.logger.Info("slack requested disconnect", slog.String("reason", f.Reason))
			return errServerDisconnect
		default:
			if f.EnvelopeID == "" {
				c.logger.Debug("ignoring frame without envelope", logging.RequestType(string(f.Type)))
				continue
			}
			req := f.InboundRequest
			c.receive(ctx, conn, &req)
		}
	}
}

// receive acknowledges req and starts routing it. Routing runs detached from
// the read loop so a slow webhook never delays the next acknowledgement.
func (c *Client) receive(ctx context.Context, conn *websocket.Conn, req *models.InboundRequest) {
	metrics.RequestsTotal.WithLabelValues(requestLabel(req.Type)).Inc()

	if err := c.ack(conn, req.EnvelopeID); err != nil {
		metrics.AcksTotal.WithLabelValues("failed").Inc()
		c.logger.Error("error acknowledging socket mode request",
			logging.EnvelopeID(req.EnvelopeID), logging.Error(err))
		return
	}
	metrics.AcksTotal.WithLabelValues("sent").Inc()

	if req.RetryAttempt > 0 {
		c.logger.Info("slack redelivered request",
			logging.EnvelopeID(req.EnvelopeID),
			slog.Int("retry_attempt", req.RetryAttempt),
			slog.String("retry_reason", req.RetryReason))
	}

	handlerCtx := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.handler.Handle(handlerCtx, req)
	}()
}

func (c *Client) ack(conn *websocket.Conn, envelopeID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.AckTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ack{EnvelopeID: envelopeID})
}

// waitInflight gives running handlers ShutdownGrace to finish; the rest are
// abandoned.
func (c *Client) waitInflight() {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownGrace):
		c.logger.Warn("abandoning in-flight requests at shutdown")
	}
}

func isFatal(err error) bool {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return fatalCodes[slackErr.Err]
	}
	return false
}

func requestLabel(t models.RequestType) string {
	if t.Known() {
		return string(t)
	}
	return "unknown"
}

// Package dispatcher delivers normalized events to the automation webhook.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

// ErrTimeout is reported when the webhook does not answer within the timeout.
var ErrTimeout = errors.New("webhook timeout")

var errNilDelivery = errors.New("nil delivery")

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "TelHawk-Relay/1.0"
	bodyPrefixLen  = 100
	maxBodyRead    = 64 << 10
)

// Format selects how Events API deliveries are encoded.
type Format string

const (
	// FormatNative forwards the Slack payload exactly as received.
	FormatNative Format = "native"
	// FormatNormalized wraps the normalized event in a synthetic event_callback.
	FormatNormalized Format = "normalized"
)

type Config struct {
	URL     string
	Timeout time.Duration
	Format  Format
}

// Dispatcher POSTs one delivery per call. No retries; the outcome is logged.
type Dispatcher struct {
	url     string
	timeout time.Duration
	format  Format
	client  *http.Client
	logger  *logging.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a dispatcher that sends through client. The client is owned by
// the caller and shared across deliveries.
func New(cfg Config, client *http.Client, logger *logging.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Format == "" {
		cfg.Format = FormatNative
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		format:  cfg.Format,
		client:  client,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Dispatch sends d to the webhook and reports what happened. It returns within
// the configured timeout.
func (w *Dispatcher) Dispatch(ctx context.Context, d *models.Delivery) models.DispatchResult {
	if d == nil {
		return models.DispatchResult{Err: errNilDelivery}
	}
	start := time.Now()
	result := w.send(ctx, d)
	result.Duration = time.Since(start)
	metrics.DispatchDuration.Observe(result.Duration.Seconds())

	log := w.logger.WithContext(ctx).With(
		logging.RequestType(string(d.RequestType)),
		logging.EventType(d.EventType),
		logging.Duration(result.Duration.Milliseconds()),
	)
	switch {
	case errors.Is(result.Err, ErrTimeout):
		metrics.DispatchTotal.WithLabelValues("timeout").Inc()
		log.Error("timeout sending data to webhook", logging.Error(result.Err))
	case result.Err != nil:
		metrics.DispatchTotal.WithLabelValues("error").Inc()
		log.Error("error sending data to webhook", logging.Error(result.Err))
	case result.OK():
		metrics.DispatchTotal.WithLabelValues("delivered").Inc()
		log.Debug("delivered to webhook", logging.Status(result.StatusCode), "response", result.Body)
	default:
		metrics.DispatchTotal.WithLabelValues("rejected").Inc()
		log.Warn("webhook returned non-success status", logging.Status(result.StatusCode), "response", result.Body)
	}
	return result
}

func (w *Dispatcher) send(ctx context.Context, d *models.Delivery) models.DispatchResult {
	body, err := w.Body(d)
	if err != nil {
		return models.DispatchResult{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return models.DispatchResult{Err: fmt.Errorf("create webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.DispatchResult{Err: fmt.Errorf("%w after %s: %v", ErrTimeout, w.timeout, err)}
		}
		return models.DispatchResult{Err: fmt.Errorf("send webhook: %w", err)}
	}
	defer resp.Body.Close()

	// Read the response to complete the HTTP transaction
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil && isTimeout(err) {
		return models.DispatchResult{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w reading response: %v", ErrTimeout, err)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return models.DispatchResult{
		StatusCode: resp.StatusCode,
		Body:       prefix(raw, bodyPrefixLen),
	}
}

// Body encodes the request body for d. Native payloads are forwarded byte for
// byte; everything else is wrapped in an event_callback envelope.
func (w *Dispatcher) Body(d *models.Delivery) ([]byte, error) {
	if d == nil {
		return nil, errNilDelivery
	}
	if d.HasNative() && (d.RequestType != models.RequestEventsAPI || w.format == FormatNative) {
		return d.Native, nil
	}

	envelope := map[string]interface{}{
		"token":      "proxy-token",
		"team_id":    d.TeamID,
		"api_app_id": "proxy-app",
		"event":      d.Event,
		"type":       "event_callback",
		"event_id":   "proxy-" + w.newID(),
		"event_time": w.now().Unix(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}
	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func prefix(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

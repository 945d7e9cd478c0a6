package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/mirror"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

// Normalizer classifies a request; nil delivery means no action.
type Normalizer interface {
	Normalize(ctx context.Context, req *models.InboundRequest) (*models.Delivery, error)
}

// Dispatcher sends one delivery to the webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, d *models.Delivery) models.DispatchResult
}

// RelayService routes one acknowledged request: normalize, mirror, dispatch.
type RelayService struct {
	normalizer Normalizer
	dispatcher Dispatcher
	mirror     mirror.Publisher
	logger     *logging.Logger
}

func NewRelayService(n Normalizer, d Dispatcher, m mirror.Publisher, logger *logging.Logger) *RelayService {
	if m == nil {
		m = mirror.Noop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RelayService{normalizer: n, dispatcher: d, mirror: m, logger: logger}
}

// Handle never panics and never returns an error; failures end up in logs
// and metrics only.
func (s *RelayService) Handle(ctx context.Context, req *models.InboundRequest) {
	ctx = logging.ContextWithEnvelopeID(ctx, req.EnvelopeID)
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			s.logger.ErrorContext(ctx, "error handling socket mode request",
				logging.RequestType(string(req.Type)),
				logging.Error(fmt.Errorf("panic: %v", r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	reqType := string(req.Type)
	if !req.Type.Known() {
		reqType = "unknown"
	}

	d, err := s.normalizer.Normalize(ctx, req)
	if err != nil {
		metrics.EventsTotal.WithLabelValues(reqType, "invalid").Inc()
		s.logger.ErrorContext(ctx, "error handling socket mode request",
			logging.RequestType(string(req.Type)), logging.Error(err))
		return
	}
	if d == nil {
		metrics.EventsTotal.WithLabelValues(reqType, "ignored").Inc()
		return
	}
	metrics.EventsTotal.WithLabelValues(reqType, "forwarded").Inc()

	if err := s.mirror.Publish(ctx, d); err != nil {
		metrics.MirrorErrors.Inc()
		s.logger.WarnContext(ctx, "event mirror publish failed", logging.Error(err))
	}

	s.dispatcher.Dispatch(ctx, d)

	switch d.RequestType {
	case models.RequestSlashCommands:
		s.logger.InfoContext(ctx, "processed slash command",
			slog.String("command", d.EventType), logging.TeamID(d.TeamID))
	case models.RequestInteractive:
		s.logger.InfoContext(ctx, "processed interactive event",
			logging.EventType(d.EventType), logging.TeamID(d.TeamID))
	}
}

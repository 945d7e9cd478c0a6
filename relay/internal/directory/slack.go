package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// SlackAPI is the part of the slack-go client used for lookups.
type SlackAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
}

// SlackDirectory resolves ids through the Slack Web API (users.info and
// conversations.info). Calls share one rate limiter and are bounded by timeout.
type SlackDirectory struct {
	api     SlackAPI
	limiter *rate.Limiter
	timeout time.Duration
}

// NewSlackDirectory creates a directory backed by api. perSecond <= 0 disables
// rate limiting.
func NewSlackDirectory(api SlackAPI, perSecond float64, burst int, timeout time.Duration) *SlackDirectory {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &SlackDirectory{
		api:     api,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (s *SlackDirectory) ChannelName(ctx context.Context, channelID string) (string, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	ch, err := s.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return "", classify("conversations.info", err)
	}
	if ch == nil {
		return "", fmt.Errorf("%w: conversations.info returned no channel", ErrNotFound)
	}
	return ch.Name, nil
}

func (s *SlackDirectory) LookupUser(ctx context.Context, userID string) (User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		return User{}, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	u, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return User{}, classify("users.info", err)
	}
	if u == nil {
		return User{}, fmt.Errorf("%w: users.info returned no user", ErrNotFound)
	}
	return User{
		ID:       u.ID,
		Name:     u.Name,
		RealName: u.RealName,
		Email:    u.Profile.Email,
	}, nil
}

func (s *SlackDirectory) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// classify maps Slack API errors such as "user_not_found" onto ErrNotFound and
// everything else onto ErrUnavailable.
func classify(method string, err error) error {
	if strings.HasSuffix(err.Error(), "_not_found") {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, method, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
}

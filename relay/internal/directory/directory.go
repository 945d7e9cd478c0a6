// Package directory resolves Slack user and channel identifiers to display
// values. Lookups are best-effort: callers go through ResolveChannelName and
// ResolveUser, which fall back to the raw identifier on any failure.
package directory

import (
	"context"
	"errors"

	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
)

var (
	// ErrNotFound means the directory has no such user or channel.
	ErrNotFound = errors.New("directory: not found")
	// ErrUnavailable means the directory could not be asked.
	ErrUnavailable = errors.New("directory: unavailable")
)

// User is the subset of a Slack user profile the relay forwards.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Email    string `json:"email,omitempty"`
}

// DisplayName returns the real name, then the handle, then the id.
func (u User) DisplayName() string {
	switch {
	case u.RealName != "":
		return u.RealName
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}

// Directory looks up display information by Slack id.
type Directory interface {
	ChannelName(ctx context.Context, channelID string) (string, error)
	LookupUser(ctx context.Context, userID string) (User, error)
}

// ResolveChannelName returns the channel name, or channelID if the lookup fails.
func ResolveChannelName(ctx context.Context, d Directory, channelID string, logger *logging.Logger) string {
	if d == nil || channelID == "" {
		return channelID
	}
	name, err := d.ChannelName(ctx, channelID)
	if err != nil || name == "" {
		metrics.LookupsTotal.WithLabelValues("channel", "fallback").Inc()
		if err != nil {
			logger.WarnContext(ctx, "could not get channel info",
				logging.Channel(channelID), logging.Error(err))
		}
		return channelID
	}
	metrics.LookupsTotal.WithLabelValues("channel", "resolved").Inc()
	return name
}

// ResolveUser returns the display name and email for userID. On failure the
// name falls back to userID and the email is empty.
func ResolveUser(ctx context.Context, d Directory, userID string, logger *logging.Logger) (name, email string) {
	if d == nil || userID == "" {
		return userID, ""
	}
	u, err := d.LookupUser(ctx, userID)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("user", "fallback").Inc()
		logger.WarnContext(ctx, "could not get user info",
			logging.User(userID), logging.Error(err))
		return userID, ""
	}
	metrics.LookupsTotal.WithLabelValues("user", "resolved").Inc()
	if u.ID == "" {
		u.ID = userID
	}
	return u.DisplayName(), u.Email
}

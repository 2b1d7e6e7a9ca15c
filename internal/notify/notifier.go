package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careready/careready/internal/domain"
)

// ErrNoMessengerLinks is returned when a user has no linked messenger accounts.
var ErrNoMessengerLinks = errors.New("notify: user has no messenger links") //nolint:gochecknoglobals // sentinel error

// ErrPlatformNotFound is returned when a messenger platform is not registered.
var ErrPlatformNotFound = errors.New("notify: platform not found") //nolint:gochecknoglobals // sentinel error

// Messenger abstracts push delivery to a chat platform (Slack, Teams, etc.).
// Implementations handle platform-specific API calls.
type Messenger interface {
	// SendMessage posts a text message to a channel.
	SendMessage(ctx context.Context, channelID, text string) error

	// SendNotification sends a direct notification to a user by their
	// external platform ID (e.g. Slack user ID).
	SendNotification(ctx context.Context, userExternalID, text string) error

	// Platform returns the messenger platform identifier (e.g. "slack").
	Platform() string
}

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (Messenger, bool)
}

// UserLinkResolver finds messenger links for a user.
type UserLinkResolver interface {
	ListMessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error)
}

// Notifier dispatches push notifications to users through their linked
// messenger accounts. The session orchestrator uses it for completion
// notices; it degrades to a log line when a user has no links.
type Notifier struct {
	messengers MessengerRegistry
	userLinks  UserLinkResolver
}

// New creates a new Notifier with the given messenger registry and user link resolver.
func New(messengers MessengerRegistry, userLinks UserLinkResolver) *Notifier {
	return &Notifier{
		messengers: messengers,
		userLinks:  userLinks,
	}
}

// Notify sends a notification to the user via their first available messenger link.
// Falls back to logging if no links exist.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	links, err := n.userLinks.ListMessengerLinks(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify.Notifier.Notify: list links: %w", err)
	}

	if len(links) == 0 {
		log.Debug().Stringer("user_id", userID).Str("message", message).Msg("no messenger links for user")
		return nil
	}

	// Try each link until one succeeds.
	var lastErr error
	for _, link := range links {
		sendErr := n.NotifyVia(ctx, link.Platform, link.ExternalID, message)
		if sendErr == nil {
			return nil
		}
		lastErr = sendErr
	}

	return fmt.Errorf("notify.Notifier.Notify: all links failed: %w", lastErr)
}

// NotifyVia sends a notification using a specific platform and external ID directly.
func (n *Notifier) NotifyVia(ctx context.Context, platform, externalID, message string) error {
	msg, ok := n.messengers.Get(platform)
	if !ok {
		return fmt.Errorf("notify.Notifier.NotifyVia: platform %q: %w", platform, ErrPlatformNotFound)
	}

	if err := msg.SendNotification(ctx, externalID, message); err != nil {
		return fmt.Errorf("notify.Notifier.NotifyVia: send: %w", err)
	}

	return nil
}

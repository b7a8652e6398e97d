package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// MailClient is the driven port for the upstream mail provider. Every call
// takes the access secret obtained from the token lifecycle manager; the
// adapter does not cache or refresh credentials itself.
type MailClient interface {
	// ListUnread returns unread messages received at or after since.
	ListUnread(ctx context.Context, accessSecret string, since time.Time) ([]model.Message, error)

	// MoveToFolder files a message into the named folder.
	MoveToFolder(ctx context.Context, accessSecret, messageID, folder string) error

	// CreateReplyDraft creates a provider-side reply draft for a message.
	CreateReplyDraft(ctx context.Context, accessSecret, messageID, body string) error
}

// CalendarClient is the driven port for the upstream calendar provider.
type CalendarClient interface {
	// ListUpcoming returns events starting within the given window from now.
	ListUpcoming(ctx context.Context, accessSecret string, window time.Duration) ([]model.Event, error)
}

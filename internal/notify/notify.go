// Package notify records outbound notifications. Delivery is a log row;
// wiring a real channel (mail, chat) happens behind this seam.
package notify

import (
	"context"
	"fmt"

	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/store"
)

// DefaultRecipient receives pipeline notifications unless a caller names
// someone else.
const DefaultRecipient = "maintenance-lead"

// Notifier persists notifications to the notification log.
type Notifier struct {
	DB *store.DB
}

// NewNotifier returns a Notifier on the given store.
func NewNotifier(db *store.DB) *Notifier {
	return &Notifier{DB: db}
}

// Send records one notification. Failures are logged, not returned: a lost
// notification must never abort the batch that produced it.
func (n *Notifier) Send(ctx context.Context, recipient, subject, message string) {
	if recipient == "" {
		recipient = DefaultRecipient
	}
	_, err := n.DB.InsertNotification(ctx, store.NotificationLog{
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
	})
	if err != nil {
		monitoring.Logf("notify: failed to record notification %q: %v", subject, err)
		return
	}
	monitoring.Logf("notify: %s: %s", recipient, subject)
}

// Sendf is Send with a formatted message.
func (n *Notifier) Sendf(ctx context.Context, recipient, subject, format string, args ...any) {
	n.Send(ctx, recipient, subject, fmt.Sprintf(format, args...))
}

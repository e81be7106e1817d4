package mailer

import (
	"context"

	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// DevTransport prints messages to the log instead of sending them.
type DevTransport struct{}

func NewDevTransport() *DevTransport { return &DevTransport{} }

func (d *DevTransport) Deliver(ctx context.Context, msg Message) error {
	logger.InfoContext(ctx, "[DEV MAIL]",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

package service

import (
	"context"
	"strconv"

	"github.com/diagnosis/tour-bookings/internal/platform/mailer"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

// Notifier turns bus events into emails. Handlers log and drop failures;
// the bus has no redelivery.
type Notifier struct {
	sender     mailer.Sender
	myToursURL string
}

func NewNotifier(sender mailer.Sender, myToursURL string) *Notifier {
	return &Notifier{sender: sender, myToursURL: myToursURL}
}

func (n *Notifier) HandleNotification(ctx context.Context, msg *events.Message) error {
	var ev events.NotificationEvent
	if err := msg.Decode(&ev); err != nil {
		return err
	}
	vars := make(map[string]string, len(ev.Data)+1)
	for k, v := range ev.Data {
		vars[k] = v
	}
	vars["name"] = ev.Name

	if err := n.sender.Send(ctx, ev.Recipient, ev.Template, vars); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Notification sent", "template", ev.Template)
	return nil
}

func (n *Notifier) HandleBookingCreated(ctx context.Context, msg *events.Message) error {
	var ev events.BookingCreatedEvent
	if err := msg.Decode(&ev); err != nil {
		return err
	}
	vars := map[string]string{
		"name":     ev.UserName,
		"tourName": ev.TourName,
		"price":    strconv.FormatFloat(ev.Price, 'f', 2, 64),
		"url":      n.myToursURL,
	}
	if err := n.sender.Send(ctx, ev.UserEmail, events.TemplateBookingConfirmed, vars); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Booking confirmation sent", "booking_id", ev.BookingID)
	return nil
}

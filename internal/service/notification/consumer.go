package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

// Consumer mails every notification published on its topic.
type Consumer struct {
	broker messaging.MessageBroker
	mailer Mailer
	logger *logger.Logger
}

func NewConsumer(broker messaging.MessageBroker, mailer Mailer, logger *logger.Logger) *Consumer {
	return &Consumer{broker: broker, mailer: mailer, logger: logger}
}

// Run subscribes to topic and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context, topic string) error {
	c.logger.Info("Starting notification consumer", "topic", topic)
	if err := c.broker.Subscribe(ctx, topic, func(payload []byte) error {
		return c.Handle(ctx, payload)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	<-ctx.Done()
	c.logger.Info("Shutting down notification consumer")
	return nil
}

func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var n model.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if len(n.Recipients) == 0 {
		return nil
	}
	subject, body, err := Render(&n)
	if err != nil {
		return err
	}
	if err := c.mailer.Send(ctx, n.Recipients, subject, body); err != nil {
		c.logger.Error(err, "Failed to send notification email",
			"kind", string(n.Kind),
			"booking_id", n.BookingID.String())
		return err
	}
	c.logger.Debug("Notification email sent", "kind", string(n.Kind), "booking_id", n.BookingID.String())
	return nil
}

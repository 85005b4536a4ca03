package notification

import (
	"context"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/pkg/circuitbreaker"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPMailer sends plain-text mail through one SMTP relay. A run of failed
// dials opens the breaker so a dead relay does not stall the consumer.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	breaker *circuitbreaker.CircuitBreaker
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.breaker.Execute(func() error {
		return m.dialer.DialAndSend(msg)
	})
}

package notification

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/jwalitptl/booking-api/internal/model"
)

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[model.NotificationKind]mailTemplate{
	model.NotificationBookingCreated: {
		subject: "Your booking is confirmed",
		body: template.Must(template.New("created").Parse(
			`Your booking on {{.date}} from {{.start_time}} to {{.end_time}} is confirmed.

Total: {{.total_cost}}
Deposit due: {{.deposit_amount}}
Remaining: {{.remaining_amount}}

Booking reference: {{.booking_id}}
`)),
	},
	model.NotificationBookingCancelled: {
		subject: "Your booking was cancelled",
		body: template.Must(template.New("cancelled").Parse(
			`The booking on {{.date}} from {{.start_time}} to {{.end_time}} was cancelled.
{{with .cancellation_reason}}Reason: {{.}}
{{end}}Any payment made will be refunded.

Booking reference: {{.booking_id}}
`)),
	},
	model.NotificationBookingCompleted: {
		subject: "Thanks for your visit",
		body: template.Must(template.New("completed").Parse(
			`Your appointment on {{.date}} is complete and fully paid ({{.total_cost}}).

Booking reference: {{.booking_id}}
`)),
	},
	model.NotificationBookingRescheduled: {
		subject: "Your booking was moved",
		body: template.Must(template.New("rescheduled").Parse(
			`Your booking moved from {{.previous_date}} {{.previous_start_time}}-{{.previous_end_time}} to {{.date}} {{.start_time}}-{{.end_time}}.

Booking reference: {{.booking_id}}
`)),
	},
	model.NotificationBookingDeleted: {
		subject: "Your booking was removed",
		body: template.Must(template.New("deleted").Parse(
			`The booking on {{.date}} from {{.start_time}} to {{.end_time}} was removed.

Booking reference: {{.booking_id}}
`)),
	},
}

// Render produces the subject and plain-text body for n.
func Render(n *model.Notification) (string, string, error) {
	tmpl, ok := templates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for %q", n.Kind)
	}
	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, n.Data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return tmpl.subject, buf.String(), nil
}

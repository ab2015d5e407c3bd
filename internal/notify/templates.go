package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// DueDateLayout is how due dates appear in messages.
const DueDateLayout = "2006-01-02 15:04:05"

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

type templateData struct {
	TicketKey     string
	Title         string
	DueDate       string
	TicketURL     string
	Role          domain.RecipientRole
	Description   string
	Status        string
	Assignee      string
	AssigneeEmail string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(kind domain.NotificationKind, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(string(kind) + "_subject").Parse(subject)),
		body:    template.Must(template.New(string(kind) + "_body").Parse(body)),
	}
}

var templates = map[domain.NotificationKind]messageTemplate{
	domain.NotificationSLAWarning: mustTemplate(domain.NotificationSLAWarning,
		`SLA Warning for Ticket {{.TicketKey}}`,
		`SLA Warning Alert:

The Service Level Agreement (SLA) for ticket {{.TicketKey}} is approaching its deadline.

SLA Due Date: {{.DueDate}}

Please address this ticket promptly to avoid an SLA breach.
{{if .TicketURL}}
{{.TicketURL}}
{{end}}
This is an automated message.
`),
	domain.NotificationSLABreach: mustTemplate(domain.NotificationSLABreach,
		`SLA BREACHED for Ticket {{.TicketKey}}`,
		`SLA Breach Alert:

The Service Level Agreement (SLA) for ticket {{.TicketKey}} has been breached.
{{if .DueDate}}
SLA Due Date: {{.DueDate}}
{{end}}
Immediate action is required.
{{if .TicketURL}}
{{.TicketURL}}
{{end}}
This is an automated message.
`),
	domain.NotificationTicketCreated: mustTemplate(domain.NotificationTicketCreated,
		`New Ticket Created: {{.TicketKey}}`,
		`Hello,

{{if eq .Role "assignee"}}A new ticket has been assigned to you.{{else if eq .Role "developer_org"}}A new ticket has been opened for your organisation.{{else}}Your ticket has been successfully created.{{end}}

Ticket ID: {{.TicketKey}}
Summary: {{.Title}}
{{if .Description}}Description: {{.Description}}
{{end}}
Please log in to the system to view the ticket:
{{.TicketURL}}

Thank you,
The Support Team
`),
	domain.NotificationTicketAssigned: mustTemplate(domain.NotificationTicketAssigned,
		`New Ticket Assigned: {{.Title}}`,
		`Hello{{if .Assignee}} {{.Assignee}}{{end}},

A new ticket has been assigned to you.

Ticket Summary: {{.Title}}
{{if .Description}}Description: {{.Description}}
{{end}}
Please log in to the system to review the ticket:
{{.TicketURL}}

Thank you.
`),
	domain.NotificationTicketAutoAssigned: mustTemplate(domain.NotificationTicketAutoAssigned,
		`[Ticket Assignment Notice] Auto-Assigned Ticket {{.TicketKey}} - "{{.Title}}"`,
		`Dear Dispatcher,

You have been automatically assigned a new support ticket in the system.

Ticket ID: {{.TicketKey}}
Summary: {{.Title}}
{{if .Description}}Description: {{.Description}}
{{end}}
Please review the ticket and assign it to the appropriate developer:
{{.TicketURL}}

Thank you,
The Support Team
`),
	domain.NotificationAssignmentConfirmed: mustTemplate(domain.NotificationAssignmentConfirmed,
		`[Ticket Assignment] Ticket {{.TicketKey}} - "{{.Title}}"`,
		`Dear Dispatcher,

This is a confirmation that the following ticket has been assigned to the developer:

Ticket ID: {{.TicketKey}}
Summary: {{.Title}}
Assigned To: {{if .Assignee}}{{.Assignee}} {{end}}<{{.AssigneeEmail}}>

{{.TicketURL}}

Thank you,
The Support Team
`),
	domain.NotificationTicketStatusChanged: mustTemplate(domain.NotificationTicketStatusChanged,
		`Update on Ticket {{.TicketKey}}: Status Changed to {{.Status}}`,
		`Dear User,

The status of your support ticket has been updated.

Ticket ID: {{.TicketKey}}
New Status: {{.Status}}
Assigned Engineer: {{if .Assignee}}{{.Assignee}}{{else}}Unassigned{{end}}

If you have any questions, please reply to this email.

Best regards,
Support Team
`),
}

// Renderer turns notification events into messages.
type Renderer struct {
	siteURL string
}

// NewRenderer builds a renderer that links tickets under siteURL.
func NewRenderer(siteURL string) *Renderer {
	return &Renderer{siteURL: strings.TrimRight(siteURL, "/")}
}

// Render produces the subject and body for event.
func (r *Renderer) Render(event domain.NotificationEvent) (Message, error) {
	tmpl, ok := templates[event.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for notification kind %q", event.Kind)
	}

	data := templateData{
		TicketKey:     event.TicketKey,
		Title:         event.Title,
		Role:          event.Role,
		Description:   event.Details[domain.DetailDescription],
		Status:        event.Details[domain.DetailStatus],
		Assignee:      event.Details[domain.DetailAssigneeName],
		AssigneeEmail: event.Details[domain.DetailAssigneeEmail],
	}
	if data.TicketKey == "" {
		data.TicketKey = event.TicketID
	}
	if event.DueDate != nil {
		data.DueDate = event.DueDate.UTC().Format(DueDateLayout)
	}
	if r.siteURL != "" {
		data.TicketURL = r.siteURL + "/tickets/" + data.TicketKey
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{
		To:      event.Recipient,
		Subject: strings.TrimSpace(subject.String()),
		Body:    body.String(),
	}, nil
}

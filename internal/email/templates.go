package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/hireloop/ats-api/pkg/event"
)

// Rendered is a subject/body pair ready for a Sender, plus the recipient
// role the dispatcher resolves to an address.
type Rendered struct {
	Subject string
	Body    string
}

var gateEnteredTmpl = template.Must(template.New("gate_entered").Parse(`
<p>Hi,</p>
<p><strong>{{.CandidateName}}</strong> has reached the <strong>{{.Gate}}</strong> stage
for the <strong>{{.JobTitle}}</strong> role at {{.CompanyName}}.</p>
<p>A review is now pending.</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Review now</a></p>{{end}}
`))

var gateApprovedTmpl = template.Must(template.New("gate_approved").Parse(`
<p>Hi {{.CandidateName}},</p>
<p>Good news! You have passed the <strong>{{.Gate}}</strong> stage for the
<strong>{{.JobTitle}}</strong> role at {{.CompanyName}}.</p>
{{if .PipelineCompleted}}<p>You have completed every stage of the process. The team
will be in touch with next steps shortly.</p>
{{else if .NextGate}}<p>Your application has moved on to the <strong>{{.NextGate}}</strong> stage.</p>{{end}}
{{if .Notes}}<p>Reviewer notes: {{.Notes}}</p>{{end}}
{{if .ActionURL}}<p><a href="{{.ActionURL}}">View your application</a></p>{{end}}
`))

var gateDeniedTmpl = template.Must(template.New("gate_denied").Parse(`
<p>Hi {{.CandidateName}},</p>
<p>Thank you for your interest in the <strong>{{.JobTitle}}</strong> role at
{{.CompanyName}}. After careful review at the <strong>{{.Gate}}</strong> stage, the
team has decided not to move forward with your application.</p>
{{if .Feedback}}<p>Feedback: {{.Feedback}}</p>{{end}}
<p>We encourage you to apply for future openings.</p>
`))

var gateInfoRequestedTmpl = template.Must(template.New("gate_info_requested").Parse(`
<p>Hi {{.CandidateName}},</p>
<p>The reviewer for the <strong>{{.Gate}}</strong> stage of your
<strong>{{.JobTitle}}</strong> application at {{.CompanyName}} needs more
information from you:</p>
<ul>{{range .Questions}}<li>{{.}}</li>{{end}}</ul>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Respond here</a></p>{{end}}
`))

var gateInfoProvidedTmpl = template.Must(template.New("gate_info_provided").Parse(`
<p>Hi,</p>
<p><strong>{{.CandidateName}}</strong> has responded to your information request
at the <strong>{{.Gate}}</strong> stage for the <strong>{{.JobTitle}}</strong> role.</p>
<p>The application is back in your review queue.</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Review the response</a></p>{{end}}
`))

var gateReopenedTmpl = template.Must(template.New("gate_reopened").Parse(`
<p>Hi {{.CandidateName}},</p>
<p>Your application for the <strong>{{.JobTitle}}</strong> role at {{.CompanyName}}
has been reopened at the <strong>{{.Gate}}</strong> stage.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
`))

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderGateEvent maps a decoded gate payload to a subject/body pair. It
// returns an error for payload types that have no notification, so the
// caller can decide to skip rather than fail the event.
func RenderGateEvent(payload interface{}) (*Rendered, error) {
	switch p := payload.(type) {
	case *event.GateEnteredPayload:
		body, err := render(gateEnteredTmpl, p)
		if err != nil {
			return nil, err
		}
		return &Rendered{
			Subject: fmt.Sprintf("Review pending: %s (%s)", p.CandidateName, p.Gate),
			Body:    body,
		}, nil
	case *event.GateApprovedPayload:
		body, err := render(gateApprovedTmpl, p)
		if err != nil {
			return nil, err
		}
		subject := fmt.Sprintf("You passed the %s stage for %s", p.Gate, p.JobTitle)
		if p.PipelineCompleted {
			subject = fmt.Sprintf("Congratulations! Final approval for %s", p.JobTitle)
		}
		return &Rendered{Subject: subject, Body: body}, nil
	case *event.GateDeniedPayload:
		body, err := render(gateDeniedTmpl, p)
		if err != nil {
			return nil, err
		}
		return &Rendered{
			Subject: fmt.Sprintf("Update on your %s application", p.JobTitle),
			Body:    body,
		}, nil
	case *event.GateInfoRequestedPayload:
		body, err := render(gateInfoRequestedTmpl, p)
		if err != nil {
			return nil, err
		}
		return &Rendered{
			Subject: fmt.Sprintf("More information needed for your %s application", p.JobTitle),
			Body:    body,
		}, nil
	case *event.GateInfoProvidedPayload:
		body, err := render(gateInfoProvidedTmpl, p)
		if err != nil {
			return nil, err
		}
		return &Rendered{
			Subject: fmt.Sprintf("Response received: %s (%s)", p.CandidateName, p.Gate),
			Body:    body,
		}, nil
	case *event.GateReopenedPayload:
		body, err := render(gateReopenedTmpl, p)
		if err != nil {
			return nil, err
		}
		return &Rendered{
			Subject: fmt.Sprintf("Your %s application has been reopened", p.JobTitle),
			Body:    body,
		}, nil
	default:
		return nil, fmt.Errorf("no notification template for %T", payload)
	}
}

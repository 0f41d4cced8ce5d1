package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/osteele/liquid"
)

// Renderer produces the assignment notification email from Liquid
// templates. Bindings coming from user input are escaped before they
// reach the HTML body.
type Renderer struct {
	engine   *liquid.Engine
	subject  *liquid.Template
	htmlBody *liquid.Template
	textBody *liquid.Template
}

const subjectTemplate = `🎁 {{ event_name }}: your secret santa assignment`

const htmlTemplate = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background-color:#f4f4f7;font-family:Arial,Helvetica,sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:24px;">
      <table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#c0392b;padding:24px;text-align:center;">
          <h1 style="color:#ffffff;margin:0;font-size:22px;">🎁 {{ event_name }}</h1>
        </td></tr>
        <tr><td style="padding:32px;">
          <p style="font-size:16px;color:#333333;">Hi {{ giver_name }},</p>
          <p style="font-size:16px;color:#333333;">The draw is done! You are the secret santa for:</p>
          <p style="font-size:24px;color:#c0392b;text-align:center;font-weight:bold;margin:24px 0;">{{ receiver_name }}</p>
          {% if suggested_amount != "" %}<p style="font-size:14px;color:#555555;">Suggested gift amount: <strong>{{ suggested_amount }}</strong></p>{% endif %}
          {% if event_date != "" %}<p style="font-size:14px;color:#555555;">Exchange date: <strong>{{ event_date }}</strong></p>{% endif %}
          {% if custom_message != "" %}<p style="font-size:14px;color:#555555;font-style:italic;border-left:3px solid #c0392b;padding-left:12px;">{{ custom_message }}</p>{% endif %}
          <p style="font-size:14px;color:#999999;margin-top:32px;">Keep it a secret! 🤫</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

const textTemplate = `Hi {{ giver_name }},

The draw for "{{ event_name }}" is done! You are the secret santa for: {{ receiver_name }}
{% if suggested_amount != "" %}
Suggested gift amount: {{ suggested_amount }}{% endif %}{% if event_date != "" %}
Exchange date: {{ event_date }}{% endif %}{% if custom_message != "" %}
Message from the organizer: {{ custom_message }}{% endif %}

Keep it a secret!`

// NewRenderer parses the built-in templates once at startup.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	subject, err := engine.ParseString(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing subject template: %w", err)
	}
	htmlBody, err := engine.ParseString(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing html template: %w", err)
	}
	textBody, err := engine.ParseString(textTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing text template: %w", err)
	}

	return &Renderer{
		engine:   engine,
		subject:  subject,
		htmlBody: htmlBody,
		textBody: textBody,
	}, nil
}

// AssignmentEmail holds the user-supplied values injected into the
// notification templates.
type AssignmentEmail struct {
	EventName       string
	EventDate       string
	GiverName       string
	ReceiverName    string
	SuggestedAmount string
	CustomMessage   string
}

// Render produces subject, HTML body, and plain-text body.
func (r *Renderer) Render(data AssignmentEmail) (subject, htmlBody, textBody string, err error) {
	escaped := map[string]interface{}{
		"event_name":       html.EscapeString(data.EventName),
		"event_date":       html.EscapeString(data.EventDate),
		"giver_name":       html.EscapeString(data.GiverName),
		"receiver_name":    html.EscapeString(data.ReceiverName),
		"suggested_amount": html.EscapeString(data.SuggestedAmount),
		"custom_message":   html.EscapeString(data.CustomMessage),
	}
	plain := map[string]interface{}{
		"event_name":       data.EventName,
		"event_date":       data.EventDate,
		"giver_name":       data.GiverName,
		"receiver_name":    data.ReceiverName,
		"suggested_amount": data.SuggestedAmount,
		"custom_message":   data.CustomMessage,
	}

	subject, err = r.subject.RenderString(plain)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering subject: %w", err)
	}
	htmlBody, err = r.htmlBody.RenderString(escaped)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering html body: %w", err)
	}
	textBody, err = r.textBody.RenderString(plain)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering text body: %w", err)
	}
	return strings.TrimSpace(subject), htmlBody, textBody, nil
}

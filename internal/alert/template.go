package alert

import (
	"battery-status-bot/internal/types"
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"bytes"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

const DefaultTemplate = `{{.Icon}} *{{t "Battery alert" | escape}}*

📍 {{t "Station" | escape}}: *{{escape .Station}}*
🔋 {{t "Charge" | escape}}: *{{percent .SoC}}%*
📉 {{t "Threshold" | escape}}: {{percent .Threshold}}%`

// TemplateData provides fields for rendering an alert message.
type TemplateData struct {
	Station   string
	StationID string
	SoC       float64
	Threshold float64
	Severity  string
	Icon      string
	At        time.Time
}

// Template renders alert messages in Telegram MarkdownV2.
type Template struct {
	tpl *template.Template
}

var templateFuncs = template.FuncMap{
	"escape":  helpers.EscapeMarkdownV2,
	"percent": helpers.FormatPercent,
	"t": func(msgID string) string {
		return translation.Translate(msgID)
	},
}

// NewTemplate parses an alert template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("battery-alert").Funcs(templateFuncs).Parse(tpl)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse alert template")
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to an alert event.
func (t *Template) Render(event types.AlertEvent) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	err := t.tpl.Execute(&buf, TemplateData{
		Station:   event.DeviceName,
		StationID: event.DeviceRef,
		SoC:       event.SoC,
		Threshold: event.Threshold,
		Severity:  event.Severity.String(),
		Icon:      event.Severity.Icon(),
		At:        event.At,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not render alert template")
	}
	return buf.String(), nil
}

package alert

import (
	"fmt"
	"strings"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// Message is a Slack incoming-webhook payload.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// Block is one Block Kit layout block.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Fields   []TextObject `json:"fields,omitempty"`
	Elements []TextObject `json:"elements,omitempty"`
}

// TextObject is a Block Kit text element.
type TextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func markdown(text string) TextObject {
	return TextObject{Type: "mrkdwn", Text: text}
}

// FormatMessage renders an event as a chat notification: a header with the
// error type, the error message, environment/level/release/user fields, the
// request URL and the event id.
func FormatMessage(e *event.Event) Message {
	environment := orDefault(e.Environment(), "unknown")
	release := orDefault(e.Release(), "unknown")
	level := orDefault(e.Level(), SeverityError.String())
	user := orDefault(e.UserLabel(), "Anonymous")
	url := orDefault(e.RequestURL(), "N/A")

	errorType := "Error"
	errorMessage := ""
	if exc := e.Exceptions(); len(exc) > 0 {
		errorType = orDefault(exc[0].Type, errorType)
		errorMessage = exc[0].Value
	}
	if errorMessage == "" {
		errorMessage = orDefault(e.Message(), "Unknown error")
	}

	return Message{
		Text: fmt.Sprintf("🚨 New %s in %s", strings.ToUpper(level), environment),
		Blocks: []Block{
			{
				Type: "header",
				Text: &TextObject{Type: "plain_text", Text: "🚨 " + errorType, Emoji: true},
			},
			{
				Type: "section",
				Text: &TextObject{Type: "mrkdwn", Text: "*Error:* " + errorMessage},
			},
			{
				Type: "section",
				Fields: []TextObject{
					markdown("*Environment:*\n" + environment),
					markdown("*Level:*\n" + level),
					markdown("*Release:*\n" + release),
					markdown("*User:*\n" + user),
				},
			},
			{
				Type: "section",
				Text: &TextObject{Type: "mrkdwn", Text: "*URL:* " + url},
			},
			{Type: "divider"},
			{
				Type:     "context",
				Elements: []TextObject{markdown(fmt.Sprintf("Event ID: `%s`", e.ID()))},
			},
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

package events

import (
	"fmt"
	"strings"
	"sync"
)

// MessageTemplateEngine provides user-facing messages for events.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonIDPUnreachable] = "The login service cannot be reached{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonOAuthError] = "Login failed{{if .Error}}: {{.Error}}{{end}}"

	e.templates[ReasonUnsupportedAffiliation] = "Staff accounts are not allowed{{if .Affiliation}} (affiliation {{.Affiliation}}){{end}}"
	e.templates[ReasonMultiLoginNotAllowed] = "Students cannot be logged in next to other accounts"

	e.templates[ReasonContextNotFound] = "Session {{.SessionID}} does not exist"
	e.templates[ReasonDeduplicated] = "{{.Name}} was already linked; no account was added"
	e.templates[ReasonTokenReceived] = "Received new tokens for session {{.SessionID}}"
	e.templates[ReasonAuthenticated] = "Logged in as {{.Name}}{{if .SchoolName}} ({{.SchoolName}}){{end}}"
	e.templates[ReasonSwitched] = "Switched to {{.Name}}"
	e.templates[ReasonSwitchCancelled] = "Switch cancelled"
	e.templates[ReasonSwitchRejected] = "Another switch is in progress"
	e.templates[ReasonAccountRemoved] = "{{.Name}} was removed by another portal process"
	e.templates[ReasonLoggedOut] = "Logged out {{.Name}}"
	e.templates[ReasonPurged] = "All accounts were removed"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	e.mu.RLock()
	template, exists := e.templates[reason]
	e.mu.RUnlock()
	if !exists {
		return fmt.Sprintf("Event: %s", string(reason))
	}

	return e.renderTemplate(template, data)
}

// renderTemplate substitutes EventData fields. Only {{.Field}} and
// {{if .Field}}...{{end}} are understood.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	fields := map[string]string{
		"Name":        data.Name,
		"SessionID":   data.SessionID,
		"SchoolName":  data.SchoolName,
		"Affiliation": data.Affiliation,
		"Error":       data.Error,
	}

	result := template
	for field, value := range fields {
		result = e.renderConditional(result, "{{if ."+field+"}}", "{{end}}", value != "")
	}
	for field, value := range fields {
		result = strings.ReplaceAll(result, "{{."+field+"}}", value)
	}
	return result
}

// renderConditional handles every occurrence of one conditional block.
func (e *MessageTemplateEngine) renderConditional(template, startMarker, endMarker string, condition bool) string {
	for {
		startIndex := strings.Index(template, startMarker)
		if startIndex == -1 {
			return template
		}

		endIndex := strings.Index(template[startIndex:], endMarker)
		if endIndex == -1 {
			return template
		}
		endIndex += startIndex

		before := template[:startIndex]
		after := template[endIndex+len(endMarker):]
		if condition {
			content := template[startIndex+len(startMarker) : endIndex]
			template = before + content + after
		} else {
			template = before + after
		}
	}
}

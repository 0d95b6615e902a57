package auth

import (
	"errors"

	"portal/internal/events"
	"portal/internal/session"
)

// ErrSwitchInProgress is carried by SwitchRejected outcomes.
var ErrSwitchInProgress = errors.New("another session switch is in progress")

var messages = events.NewMessageTemplateEngine()

// Event is the outcome of a Service operation, or an asynchronous
// notification broadcast by the Service.
type Event struct {
	// Kind identifies the outcome.
	Kind events.EventReason `json:"kind" yaml:"kind"`

	// SessionID is the session the event refers to.
	SessionID session.ID `json:"sessionId,omitzero" yaml:"sessionId,omitempty"`

	// Student is the selected student after a switch.
	Student string `json:"student,omitempty" yaml:"student,omitempty"`

	// Profile is the profile the event refers to, if any.
	Profile *session.AccountProfile `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Removed lists profiles that were deleted as part of the operation.
	Removed []session.AccountProfile `json:"removed,omitempty" yaml:"removed,omitempty"`

	// Authenticated reports whether the session holds a valid access token
	// after the operation.
	Authenticated bool `json:"authenticated" yaml:"authenticated"`

	// IDPLogoutOwed is set when the last account was removed and the
	// provider-side session should still be ended.
	IDPLogoutOwed bool `json:"idpLogoutOwed,omitempty" yaml:"idpLogoutOwed,omitempty"`

	// LogoutURL is the provider end-session URL to visit, if owed.
	LogoutURL string `json:"logoutUrl,omitempty" yaml:"logoutUrl,omitempty"`

	// Affiliation is the affiliation claim of a rejected login.
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`

	// Status is the state machine status once the operation finished.
	Status Status `json:"status" yaml:"status"`

	// Err is the underlying cause of a failure outcome.
	Err error `json:"-" yaml:"-"`
}

// Type returns the severity of the event.
func (e Event) Type() events.EventType {
	return events.GetEventType(e.Kind)
}

// Failed reports whether the event describes a failure or rejection.
func (e Event) Failed() bool {
	return e.Type() == events.EventTypeWarning
}

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.Kind == ""
}

// Message renders a user-facing description of the event.
func (e Event) Message() string {
	data := events.EventData{
		Affiliation: e.Affiliation,
	}
	if e.SessionID != session.Nil {
		data.SessionID = e.SessionID.String()
	}
	if e.Profile != nil {
		data.Name = e.Profile.DisplayName()
		data.SchoolName = e.Profile.SchoolName
	}
	if e.Err != nil {
		data.Error = e.Err.Error()
	}
	return messages.Render(e.Kind, data)
}

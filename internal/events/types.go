package events

// EventType represents the severity of an authentication event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason identifies the outcome of an authentication operation.
type EventReason string

// Identity provider failures
const (
	// ReasonIDPUnreachable indicates the discovery document could not be loaded.
	ReasonIDPUnreachable EventReason = "IDPUnreachable"

	// ReasonOAuthError indicates the provider answered with a protocol error.
	ReasonOAuthError EventReason = "OAuthError"
)

// Business rule rejections
const (
	// ReasonUnsupportedAffiliation indicates the account is neither a student
	// nor a parent/guardian.
	ReasonUnsupportedAffiliation EventReason = "UnsupportedAffiliation"

	// ReasonMultiLoginNotAllowed indicates a student tried to log in next to
	// another authenticated account.
	ReasonMultiLoginNotAllowed EventReason = "MultiLoginNotAllowed"
)

// Context lifecycle
const (
	// ReasonContextNotFound indicates a switch to an unknown session.
	ReasonContextNotFound EventReason = "ContextNotFound"

	// ReasonDeduplicated indicates a login matched an account that was
	// already linked; the older session was removed.
	ReasonDeduplicated EventReason = "Deduplicated"

	// ReasonTokenReceived indicates the provider issued or refreshed tokens.
	ReasonTokenReceived EventReason = "TokenReceived"

	// ReasonAuthenticated indicates a login completed and the profile was stored.
	ReasonAuthenticated EventReason = "Authenticated"

	// ReasonSwitched indicates the active session changed.
	ReasonSwitched EventReason = "Switched"

	// ReasonSwitchCancelled indicates the switch interceptor declined.
	ReasonSwitchCancelled EventReason = "SwitchCancelled"

	// ReasonSwitchRejected indicates another switch was already in flight.
	ReasonSwitchRejected EventReason = "SwitchRejected"

	// ReasonAccountRemoved indicates a profile disappeared because another
	// process changed the store.
	ReasonAccountRemoved EventReason = "AccountRemoved"

	// ReasonLoggedOut indicates the current account was logged out.
	ReasonLoggedOut EventReason = "LoggedOut"

	// ReasonPurged indicates every stored session was removed.
	ReasonPurged EventReason = "Purged"
)

// EventData contains the fields available to message templates.
type EventData struct {
	// Name is the display name of the account involved.
	Name string

	// SessionID is the session the event refers to.
	SessionID string

	// SchoolName is the organization of the account.
	SchoolName string

	// Affiliation is the affiliation claim that was presented.
	Affiliation string

	// Error contains error information for failure events.
	Error string
}

// GetEventType returns the appropriate EventType for a given EventReason.
func GetEventType(reason EventReason) EventType {
	switch reason {
	case ReasonIDPUnreachable,
		ReasonOAuthError,
		ReasonUnsupportedAffiliation,
		ReasonMultiLoginNotAllowed,
		ReasonContextNotFound,
		ReasonSwitchRejected,
		ReasonAccountRemoved:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}

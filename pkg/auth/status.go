package auth

import "time"

// StatusResponse describes the authentication state of the portal CLI.
type StatusResponse struct {
	// Status is the state machine status, e.g. "READY" or "ERROR".
	Status string `json:"status" yaml:"status"`

	// LoggedIn reports whether the current account holds a valid access token.
	LoggedIn bool `json:"logged_in" yaml:"logged_in"`

	// Issuer is the configured identity provider.
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty"`

	// Current is the active account, if any.
	Current *AccountStatus `json:"current,omitempty" yaml:"current,omitempty"`

	// Accounts is the number of known accounts.
	Accounts int `json:"accounts" yaml:"accounts"`

	// Error describes why the status could not be determined, e.g. an
	// unreachable identity provider.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// AccountStatus describes one account session.
type AccountStatus struct {
	SessionID     string `json:"session_id" yaml:"session_id"`
	Name          string `json:"name" yaml:"name"`
	School        string `json:"school,omitempty" yaml:"school,omitempty"`
	Affiliation   string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`

	// Current marks the active session.
	Current bool `json:"current" yaml:"current"`

	// SelectedStudent is the UUID of the selected student of the active
	// session.
	SelectedStudent string `json:"selected_student,omitempty" yaml:"selected_student,omitempty"`

	Students []StudentStatus `json:"students,omitempty" yaml:"students,omitempty"`
}

// StudentStatus is a student linked to a parent/guardian account.
type StudentStatus struct {
	UUID string `json:"uuid" yaml:"uuid"`
	Name string `json:"name" yaml:"name"`
}

// EventRecord is one authentication event as streamed by "portal auth watch".
type EventRecord struct {
	Time      time.Time `json:"time" yaml:"time"`
	Kind      string    `json:"kind" yaml:"kind"`
	Type      string    `json:"type" yaml:"type"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Status    string    `json:"status" yaml:"status"`
	Message   string    `json:"message" yaml:"message"`

	// LogoutURL is the provider end-session URL still to be visited.
	LogoutURL string `json:"logout_url,omitempty" yaml:"logout_url,omitempty"`
}

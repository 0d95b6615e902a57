package oauth

// EventType identifies a Client event.
type EventType string

const (
	EventDiscoveryDocumentLoaded EventType = "discovery_document_loaded"
	EventTokenReceived           EventType = "token_received"
	EventTokenRefreshed          EventType = "token_refreshed"
	EventTokenRefreshError       EventType = "token_refresh_error"
	EventTokenError              EventType = "token_error"
	EventLogout                  EventType = "logout"
)

// Event is emitted by the Client to its handler.
type Event struct {
	Type EventType

	// Err is set for error events.
	Err error
}

// CarriesTokens reports whether the event changed the stored tokens.
func (e Event) CarriesTokens() bool {
	return e.Type == EventTokenReceived || e.Type == EventTokenRefreshed
}

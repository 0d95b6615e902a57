package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/events"
	"portal/internal/session"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusAuthInit, "AUTH_INIT"},
		{StatusResuming, "RESUMING"},
		{StatusSwitching, "SWITCHING"},
		{StatusReady, "READY"},
		{StatusError, "ERROR"},
		{Status(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
	assert.True(t, StatusReady.Settled())
	assert.True(t, StatusError.Settled())
	assert.False(t, StatusSwitching.Settled())
}

func TestEvent_Message(t *testing.T) {
	profile := &session.AccountProfile{Name: "Marit", SchoolName: "De Regenboog"}

	assert.Equal(t, "Logged in as Marit (De Regenboog)",
		Event{Kind: events.ReasonAuthenticated, Profile: profile}.Message())
	assert.Equal(t, "Staff accounts are not allowed (affiliation staff)",
		Event{Kind: events.ReasonUnsupportedAffiliation, Affiliation: "staff"}.Message())
	assert.Equal(t, "Login failed: boom",
		Event{Kind: events.ReasonOAuthError, Err: errBoom}.Message())
}

func TestEvent_Classification(t *testing.T) {
	assert.True(t, Event{Kind: events.ReasonMultiLoginNotAllowed}.Failed())
	assert.False(t, Event{Kind: events.ReasonSwitched}.Failed())
	assert.True(t, Event{}.IsZero())
}

func TestEvent_JSON(t *testing.T) {
	id := session.NewID()
	data, err := json.Marshal(Event{Kind: events.ReasonSwitched, SessionID: id, Status: StatusReady, Err: errBoom})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Switched", decoded["kind"])
	assert.Equal(t, id.String(), decoded["sessionId"])
	assert.Equal(t, "READY", decoded["status"])
	assert.NotContains(t, decoded, "Err")
}

package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/auth"
	"portal/internal/events"
	"portal/internal/session"
)

func TestErrorForEvent(t *testing.T) {
	const issuer = "https://idp.example"

	t.Run("success outcomes are not errors", func(t *testing.T) {
		for _, kind := range []events.EventReason{
			events.ReasonSwitched,
			events.ReasonAuthenticated,
			events.ReasonDeduplicated,
			events.ReasonLoggedOut,
			events.ReasonPurged,
		} {
			assert.NoError(t, ErrorForEvent(auth.Event{Kind: kind}, issuer), kind)
		}
	})

	t.Run("unreachable provider is a classified connection error", func(t *testing.T) {
		err := ErrorForEvent(auth.Event{
			Kind: events.ReasonIDPUnreachable,
			Err:  errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
		}, issuer)

		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, ConnectionErrorNetwork, connErr.Type)
		assert.Equal(t, issuer, connErr.Endpoint)
	})

	t.Run("rejected logins are authentication failures", func(t *testing.T) {
		for _, ev := range []auth.Event{
			{Kind: events.ReasonOAuthError, Err: errors.New("access_denied")},
			{Kind: events.ReasonUnsupportedAffiliation, Affiliation: "staff"},
			{Kind: events.ReasonMultiLoginNotAllowed},
		} {
			err := ErrorForEvent(ev, issuer)
			var failed *AuthFailedError
			require.ErrorAs(t, err, &failed, ev.Kind)
			assert.Equal(t, string(ev.Kind), failed.Outcome)
		}

		err := ErrorForEvent(auth.Event{Kind: events.ReasonUnsupportedAffiliation, Affiliation: "staff"}, issuer)
		assert.Contains(t, err.Error(), "staff")
	})

	t.Run("failed refresh means the login expired", func(t *testing.T) {
		profile := &session.AccountProfile{SessionID: session.NewID(), Name: "Marit"}
		err := ErrorForEvent(auth.Event{
			Kind:    events.ReasonOAuthError,
			Profile: profile,
			Err:     fmt.Errorf("%w: %w", auth.ErrRefreshFailed, errors.New("invalid_grant")),
		}, issuer)

		var expired *AuthExpiredError
		require.ErrorAs(t, err, &expired)
		assert.Equal(t, "Marit", expired.Account)
		assert.Contains(t, err.Error(), "portal auth login")

		err = ErrorForEvent(auth.Event{Kind: events.ReasonOAuthError, Err: auth.ErrRefreshFailed}, issuer)
		require.ErrorAs(t, err, &expired)
		assert.Contains(t, err.Error(), "the current session")
	})

	t.Run("cancelled switch", func(t *testing.T) {
		assert.ErrorIs(t, ErrorForEvent(auth.Event{Kind: events.ReasonSwitchCancelled}, issuer), ErrSwitchCancelled)
	})

	t.Run("rejected switch keeps its cause", func(t *testing.T) {
		err := ErrorForEvent(auth.Event{Kind: events.ReasonSwitchRejected, Err: auth.ErrSwitchInProgress}, issuer)
		assert.ErrorIs(t, err, auth.ErrSwitchInProgress)
	})

	t.Run("unknown context", func(t *testing.T) {
		id := session.NewID()
		err := ErrorForEvent(auth.Event{Kind: events.ReasonContextNotFound, SessionID: id}, issuer)
		require.Error(t, err)
		assert.Contains(t, err.Error(), id.String())
		assert.Contains(t, err.Error(), "portal account list")
	})
}

func TestRequireAuthenticated(t *testing.T) {
	assert.NoError(t, RequireAuthenticated(true, nil))

	err := RequireAuthenticated(false, &session.AccountProfile{Name: "Marit"})
	var required *AuthRequiredError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, "Marit", required.Account)

	err = RequireAuthenticated(false, nil)
	require.ErrorAs(t, err, &required)
	assert.Empty(t, required.Account)
}

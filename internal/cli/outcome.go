package cli

import (
	"errors"
	"fmt"

	"portal/internal/auth"
	"portal/internal/events"
	"portal/internal/session"
)

// ErrSwitchCancelled is returned when a confirmation prompt was declined.
var ErrSwitchCancelled = errors.New("switch cancelled")

// ErrorForEvent converts a failed outcome into an error for the command to
// return. Successful outcomes yield nil. issuer is used to describe an
// unreachable provider.
func ErrorForEvent(ev auth.Event, issuer string) error {
	reason := ev.Err
	if reason == nil {
		reason = errors.New(ev.Message())
	}

	switch ev.Kind {
	case events.ReasonIDPUnreachable:
		return ClassifyConnectionError(reason, issuer)

	case events.ReasonOAuthError:
		if errors.Is(ev.Err, auth.ErrRefreshFailed) {
			return &AuthExpiredError{Account: accountName(ev)}
		}
		return &AuthFailedError{Outcome: string(ev.Kind), Reason: errors.New(ev.Message())}

	case events.ReasonUnsupportedAffiliation,
		events.ReasonMultiLoginNotAllowed:
		return &AuthFailedError{Outcome: string(ev.Kind), Reason: errors.New(ev.Message())}

	case events.ReasonSwitchCancelled:
		return ErrSwitchCancelled

	case events.ReasonSwitchRejected:
		return reason

	case events.ReasonContextNotFound:
		return fmt.Errorf("%s. Run: portal account list", ev.Message())
	}

	if ev.Failed() {
		return reason
	}
	return nil
}

// RequireAuthenticated returns an AuthRequiredError unless the current
// session holds a usable token.
func RequireAuthenticated(loggedIn bool, current *session.AccountProfile) error {
	if loggedIn {
		return nil
	}
	err := &AuthRequiredError{}
	if current != nil {
		err.Account = current.DisplayName()
	}
	return err
}

func accountName(ev auth.Event) string {
	if ev.Profile == nil {
		return ""
	}
	return ev.Profile.DisplayName()
}

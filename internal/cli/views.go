package cli

import (
	"time"

	"portal/internal/auth"
	"portal/internal/session"
	pkgauth "portal/pkg/auth"
)

// Accounts lists every profile in creation order.
func Accounts(meta session.Metadata) []pkgauth.AccountStatus {
	out := make([]pkgauth.AccountStatus, 0, len(meta.Profiles))
	for _, p := range meta.Profiles {
		out = append(out, Account(meta, p))
	}
	return out
}

// Account converts one profile. The student selection is only reported for
// the current session.
func Account(meta session.Metadata, p session.AccountProfile) pkgauth.AccountStatus {
	a := pkgauth.AccountStatus{
		SessionID:     p.SessionID.String(),
		Name:          p.DisplayName(),
		School:        p.SchoolName,
		Affiliation:   string(p.Affiliation),
		Authenticated: p.Authenticated,
		Current:       meta.HasCurrentSession() && p.SessionID == meta.CurrentSessionID,
	}
	if a.Current {
		a.SelectedStudent = meta.CurrentStudent
	}
	for _, s := range p.Students {
		a.Students = append(a.Students, pkgauth.StudentStatus{UUID: s.UUID, Name: s.Name})
	}
	return a
}

// Status builds the "portal auth status" view. failure is the outcome
// returned by IsLoggedIn; it is empty when the status settled normally.
func Status(status auth.Status, loggedIn bool, issuer string, meta session.Metadata, failure auth.Event) pkgauth.StatusResponse {
	resp := pkgauth.StatusResponse{
		Status:   status.String(),
		LoggedIn: loggedIn,
		Issuer:   issuer,
		Accounts: len(meta.Profiles),
	}
	if p, ok := meta.Profile(meta.CurrentSessionID); ok {
		current := Account(meta, p)
		resp.Current = &current
	}
	if !failure.IsZero() && failure.Failed() {
		resp.Error = failure.Message()
	}
	return resp
}

// Record converts an event for streaming output.
func Record(ev auth.Event, at time.Time) pkgauth.EventRecord {
	r := pkgauth.EventRecord{
		Time:      at,
		Kind:      string(ev.Kind),
		Type:      string(ev.Type()),
		Status:    ev.Status.String(),
		Message:   ev.Message(),
		LogoutURL: ev.LogoutURL,
	}
	if ev.SessionID != session.Nil {
		r.SessionID = ev.SessionID.String()
	}
	return r
}

package auth

import (
	"context"

	"portal/internal/session"
)

// SwitchRequest describes a switch an Interceptor is asked to approve.
type SwitchRequest struct {
	// SessionID is the target session. It is the zero ID when a new account
	// is about to be added.
	SessionID session.ID
	Student   string
	// AddAccount is set for RequestAddContextAndLogin.
	AddAccount bool
}

// Interceptor decides whether a requested switch may proceed, e.g. after
// asking the user to discard unsaved work.
type Interceptor func(ctx context.Context, req SwitchRequest) Answer

// Answer is an Interceptor's decision, given immediately or later.
type Answer struct {
	allow  bool
	stream <-chan bool
}

// Allow answers immediately.
func Allow(ok bool) Answer {
	return Answer{allow: ok}
}

// Stream answers with the first true value received on ch. A closed channel
// without a true value declines.
func Stream(ch <-chan bool) Answer {
	return Answer{stream: ch}
}

// Wait resolves the answer, blocking for a streamed one until it arrives
// or ctx is done.
func (a Answer) Wait(ctx context.Context) bool {
	if a.stream == nil {
		return a.allow
	}
	for {
		select {
		case ok, open := <-a.stream:
			if !open {
				return false
			}
			if ok {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

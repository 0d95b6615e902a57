// Package auth orchestrates account sessions against the identity provider.
//
// A Service owns the session switch sequence: it moves the serialized OAuth
// state of the selected session into an in-memory shim, points the OAuth
// client at it, persists the selection and then validates the session against
// the provider. Login, logout, removal and purge are built on top of that
// sequence.
//
// Every operation returns an Event describing its outcome. Business results
// such as an unreachable provider or a rejected affiliation are outcomes, not
// errors. The same outcomes, plus asynchronous notifications like tokens
// received in the background or accounts removed by another process, are
// broadcast to subscribers of Events.
//
// Only one switch runs at a time. Identical concurrent requests share a single
// run; a different request made while a switch is in flight is rejected with
// a SwitchRejected outcome.
package auth

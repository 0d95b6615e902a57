// Package session keeps track of the accounts portal knows about and which
// one is active.
//
// Every linked account lives in its own session, identified by a locally
// generated UUID. The Manager owns the list of AccountProfile records, the
// current selection (session and, for parents, the selected student) and
// persists both as one JSON document under the "authentication-metadata" key
// of a kvstore.Store. Each session's serialized OAuth state is kept in the
// same store under the session ID.
//
// # Lifecycle
//
// A session is created as an unauthenticated placeholder by
// GenerateBaseContext, filled in once a login produced identity claims, and
// destroyed together with its stored OAuth state by RemoveAccountProfile or
// Purge. SanitizeStorage reclaims OAuth state left behind by sessions that
// were removed half-way.
//
// # Thread Safety
//
// A Manager is safe for concurrent use. Observers receive snapshots through
// Watch and WatchAuthenticated; a slow observer only ever sees the latest
// value.
package session

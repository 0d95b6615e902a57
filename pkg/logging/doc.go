// Package logging provides the subsystem-tagged structured logger used across
// portal.
//
// It is a thin layer over log/slog. Every entry carries a "subsystem"
// attribute (for example "SessionManager" or "AuthService") and, for errors,
// an "error" attribute.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("SessionManager", "Loaded %d profiles", n)
//	logging.Warn("KVStore", "Keyring unavailable, falling back to %s", path)
//	logging.Error("AuthService", err, "Silent login failed for session %s", id)
//
// Security relevant events go through Audit and are prefixed with
// SECURITY_AUDIT. Token values are never logged; only session identifiers,
// issuer URLs and counts are.
//
// Until Init is called the package discards everything, which
// keeps library consumers and tests quiet.
package logging

// Package config provides configuration management for portal.
//
// Configuration is loaded from a single directory. The default directory is
// ~/.config/portal; commands accept --config-path to point somewhere else.
// The directory holds config.yaml and, with the file storage backend, the
// session store itself.
//
// # Configuration File
//
// config.yaml has three sections:
//
//	identity:
//	  issuer: https://login.example.org/{{ env "PORTAL_TENANT" | default "demo" }}
//	  clientID: portal-cli
//	  scopes: [openid, profile, offline_access]
//	  callbackPort: 3000
//	storage:
//	  backend: keyring
//	timeouts:
//	  loginCheck: 10s
//	  revoke: 3s
//
// Before it is parsed, the file is rendered as a Go template with the sprig
// function library, so values can be derived from the environment.
//
// # Defaults
//
// A missing config.yaml is not an error: GetDefaultConfig is used. Fields
// left out of the file keep their default value.
//
// # Validation
//
// Validate checks a loaded configuration and reports problems as a
// ConfigurationError that carries suggestions for fixing the file.
package config

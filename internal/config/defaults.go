package config

import (
	"strconv"
	"time"
)

const (
	// DefaultConfigDir is the configuration directory relative to the user's home.
	DefaultConfigDir = ".config/portal"

	// DefaultStoreFileName is the file backend's document inside the config directory.
	DefaultStoreFileName = "store.json"

	// DefaultCallbackPort is the local port the login callback server binds.
	DefaultCallbackPort = 3000

	// DefaultCallbackPath is the path of the login callback.
	DefaultCallbackPath = "/callback"

	DefaultLoginCheckTimeout = 10 * time.Second
	DefaultRevokeTimeout     = 3 * time.Second
)

// DefaultScopes are requested when identity.scopes is empty.
var DefaultScopes = []string{"openid", "profile", "offline_access"}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() PortalConfig {
	return PortalConfig{
		Identity: IdentityConfig{
			Scopes:       append([]string(nil), DefaultScopes...),
			CallbackPort: DefaultCallbackPort,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
		},
		Timeouts: TimeoutsConfig{
			LoginCheck: DefaultLoginCheckTimeout,
			Revoke:     DefaultRevokeTimeout,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *PortalConfig) {
	def := GetDefaultConfig()
	if len(cfg.Identity.Scopes) == 0 {
		cfg.Identity.Scopes = def.Identity.Scopes
	}
	if cfg.Identity.CallbackPort == 0 {
		cfg.Identity.CallbackPort = def.Identity.CallbackPort
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Timeouts.LoginCheck == 0 {
		cfg.Timeouts.LoginCheck = def.Timeouts.LoginCheck
	}
	if cfg.Timeouts.Revoke == 0 {
		cfg.Timeouts.Revoke = def.Timeouts.Revoke
	}
}

// RedirectURL returns the configured redirect URI or the one derived from the
// callback port.
func (c IdentityConfig) RedirectURL() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	port := c.CallbackPort
	if port == 0 {
		port = DefaultCallbackPort
	}
	return "http://localhost:" + strconv.Itoa(port) + DefaultCallbackPath
}

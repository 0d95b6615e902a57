package app

import (
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/oauth"
	"portal/internal/session"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is the directory config.yaml is loaded from when
	// PortalConfig is nil.
	ConfigPath string

	// PortalConfig is an already loaded configuration.
	PortalConfig *config.PortalConfig

	// ClientOptions are passed to the OAuth client.
	ClientOptions []oauth.Option

	// OnAuthURL is called with the authorization URL of an interactive login.
	OnAuthURL func(authURL string)

	// NoBrowser prints the authorization URL instead of opening a browser.
	NoBrowser bool

	// Interceptor, if set, builds the interceptor approving requested
	// switches. It receives the session manager to describe the target.
	Interceptor func(sessions *session.Manager) auth.Interceptor
}

// NewConfig creates a new application configuration
func NewConfig(configPath string) *Config {
	return &Config{ConfigPath: configPath}
}

package config

import "time"

// PortalConfig is the top-level configuration structure for portal.
type PortalConfig struct {
	Identity IdentityConfig `yaml:"identity"`
	Storage  StorageConfig  `yaml:"storage"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// IdentityConfig describes the OpenID Connect provider every session logs
// in against.
type IdentityConfig struct {
	Issuer                string   `yaml:"issuer"`                          // OIDC issuer URL
	ClientID              string   `yaml:"clientID"`                        // Public client identifier
	Scopes                []string `yaml:"scopes,omitempty"`                // Requested scopes (default: openid profile offline_access)
	CallbackPort          int      `yaml:"callbackPort,omitempty"`          // Local port of the login callback server (default: 3000)
	RedirectURI           string   `yaml:"redirectURI,omitempty"`           // Overrides the derived http://localhost:<port>/callback
	PostLogoutRedirectURI string   `yaml:"postLogoutRedirectURI,omitempty"` // Where the provider sends the browser after logout
}

// StorageBackend names a durable store implementation.
type StorageBackend string

const (
	StorageBackendFile    StorageBackend = "file"
	StorageBackendKeyring StorageBackend = "keyring"
	StorageBackendRedis   StorageBackend = "redis"
	StorageBackendMemory  StorageBackend = "memory"
)

// StorageConfig selects and configures the durable session store.
type StorageConfig struct {
	Backend        StorageBackend `yaml:"backend,omitempty"`        // file, keyring, redis or memory (default: file)
	Path           string         `yaml:"path,omitempty"`           // File backend location (default: <config dir>/store.json)
	KeyringService string         `yaml:"keyringService,omitempty"` // Keychain service name (default: portal)
	Redis          RedisConfig    `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// TimeoutsConfig bounds the network operations that have a caller-level
// timeout.
type TimeoutsConfig struct {
	LoginCheck time.Duration `yaml:"loginCheck,omitempty"` // Bound on IsLoggedIn (default: 10s)
	Revoke     time.Duration `yaml:"revoke,omitempty"`     // Bound on token revocation during logout (default: 3s)
}

package app

import (
	"fmt"
	"io"

	"portal/internal/auth"
	"portal/internal/kvstore"
	"portal/internal/oauth"
	"portal/internal/session"
	"portal/pkg/logging"
)

// Services holds the components of one portal process.
type Services struct {
	// Store is the durable store holding metadata and session blobs.
	Store kvstore.Store

	// Sessions owns the persisted metadata.
	Sessions *session.Manager

	// OAuth is the delegate performing the provider protocol.
	OAuth *oauth.Client

	// Auth sequences switches, logins and logouts.
	Auth *auth.Service

	unregister func()
}

// InitializeServices creates the services in dependency order. The
// configuration must have been loaded.
func InitializeServices(cfg *Config) (*Services, error) {
	pc := cfg.PortalConfig

	store, err := kvstore.Open(pc.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", pc.Storage.Backend, err)
	}
	logging.Debug("Bootstrap", "Opened %s store", pc.Storage.Backend)

	sessions := session.NewManager(store)
	client := oauth.NewClient(cfg.ClientOptions...)

	opts := auth.OptionsFromConfig(*pc)
	opts.Login.OnAuthURL = cfg.OnAuthURL
	opts.Login.NoBrowser = cfg.NoBrowser
	svc := auth.NewService(sessions, client, opts)

	s := &Services{
		Store:    store,
		Sessions: sessions,
		OAuth:    client,
		Auth:     svc,
	}
	if cfg.Interceptor != nil {
		s.unregister = svc.RegisterInterceptor(cfg.Interceptor(sessions))
	}
	return s, nil
}

// Close releases the services in reverse order.
func (s *Services) Close() {
	if s.unregister != nil {
		s.unregister()
	}
	s.Auth.Close()
	s.Sessions.Close()
	if closer, ok := s.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.Warn("Bootstrap", "Failed to close store: %v", err)
		}
	}
}

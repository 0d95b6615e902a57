package app

import (
	"context"
	"fmt"

	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/kvstore"
	"portal/pkg/logging"
)

// Application bootstraps and owns the services of one portal invocation.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration when none was supplied and
// initializes the services. Nothing is read from the store until Start.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.PortalConfig == nil {
		pc, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from path: %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from path %s: %w", cfg.ConfigPath, err)
		}
		cfg.PortalConfig = &pc
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// PortalConfig returns the configuration in use.
func (a *Application) PortalConfig() config.PortalConfig {
	return *a.config.PortalConfig
}

// Start loads the persisted metadata and resumes the current session.
func (a *Application) Start(ctx context.Context) (auth.Event, error) {
	return a.services.Auth.Init(ctx)
}

// Watcher returns the store's change notifier, if the backend has one.
func (a *Application) Watcher() (kvstore.Watcher, bool) {
	w, ok := a.services.Store.(kvstore.Watcher)
	return w, ok
}

// Close releases all services.
func (a *Application) Close() {
	a.services.Close()
}

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"portal/internal/config"
	"portal/pkg/logging"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is a durable, enumerable string key-value store.
type Store interface {
	// Get returns the value stored under key. ok is false when the key does
	// not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// Keys lists every key currently held by the store.
	Keys(ctx context.Context) ([]string, error)
}

// Watcher is implemented by stores that can report modifications made
// outside the current process.
type Watcher interface {
	// Watch calls onChange after the underlying storage was modified. It
	// returns a stop function that releases the watch.
	Watch(onChange func()) (stop func(), err error)
}

// Open creates the store selected by cfg.Backend.
//
// The keyring backend is probed first; when the system keychain is not
// available the file backend is used instead and a warning is logged.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageBackendMemory:
		return NewMemoryStore(), nil

	case config.StorageBackendFile, "":
		return NewFileStore(storePath(cfg))

	case config.StorageBackendKeyring:
		ks := NewKeyringStore(cfg.KeyringService)
		if err := ks.Probe(); err != nil {
			path := storePath(cfg)
			logging.Warn("KVStore", "System keyring unavailable (%v), storing sessions in plaintext at %s", err, path)
			return NewFileStore(path)
		}
		return ks, nil

	case config.StorageBackendRedis:
		return NewRedisStore(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func storePath(cfg config.StorageConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "portal", config.DefaultStoreFileName)
	}
	return filepath.Join(home, config.DefaultConfigDir, config.DefaultStoreFileName)
}

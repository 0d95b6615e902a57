package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keychain service name used when none is
// configured.
const DefaultKeyringService = "portal"

// indexKey holds the JSON list of keys written through this store. It is not
// itself reported by Keys.
const indexKey = "portal::index"

// KeyringStore stores entries in the operating system keychain.
type KeyringStore struct {
	mu      sync.Mutex
	service string
}

// NewKeyringStore creates a keychain-backed store for the given service name.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

// Probe checks that the keychain accepts writes.
func (s *KeyringStore) Probe() error {
	testKey := s.service + "::probe"
	if err := keyring.Set(s.service, testKey, "probe"); err != nil {
		return err
	}
	_ = keyring.Delete(s.service, testKey) // Best-effort cleanup
	return nil
}

func entryKey(key string) string {
	return "portal::" + key
}

func (s *KeyringStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	value, err := keyring.Get(s.service, entryKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KeyringStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, entryKey(key), value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}

	index, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	if _, ok := index[key]; ok {
		return nil
	}
	index[key] = struct{}{}
	return s.writeIndexLocked(index)
}

func (s *KeyringStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, entryKey(key)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}

	index, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	if _, ok := index[key]; !ok {
		return nil
	}
	delete(index, key)
	return s.writeIndexLocked(index)
}

func (s *KeyringStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndexLocked()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringStore) readIndexLocked() (map[string]struct{}, error) {
	index := make(map[string]struct{})

	raw, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return index, nil
		}
		return nil, fmt.Errorf("keyring index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("invalid keyring index: %w", err)
	}
	for _, k := range keys {
		index[k] = struct{}{}
	}
	return index, nil
}

func (s *KeyringStore) writeIndexLocked(index map[string]struct{}) error {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return fmt.Errorf("keyring index: %w", err)
	}
	return nil
}

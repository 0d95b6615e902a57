package oauth

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Storage keys used by Client.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyIDToken      = "id_token"
	keyExpiresAt    = "expires_at"
	keyTokenType    = "token_type"
	keyScope        = "granted_scopes"
	keyNonce        = "nonce"
	keyState        = "state"
	keyVerifier     = "PKCE_verifier"
	keyPendingCode  = "pending_code"
	keyPendingState = "pending_state"
)

// Storage is the synchronous key-value storage the Client keeps its state in.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
}

// MemoryStorage is an in-memory Storage whose content can be serialized as a
// whole.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *MemoryStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Backup serializes the whole content as a JSON object.
func (s *MemoryStorage) Backup() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s.items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize oauth storage: %w", err)
	}
	return string(data), nil
}

// Restore replaces the whole content with a Backup result. An empty string
// restores an empty storage. On error the content is left unchanged.
func (s *MemoryStorage) Restore(serialized string) error {
	items := make(map[string]string)
	if serialized != "" {
		if err := json.Unmarshal([]byte(serialized), &items); err != nil {
			return fmt.Errorf("failed to restore oauth storage: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	return nil
}

// Clear removes every item.
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
}

// Len returns the number of stored items.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// String never prints stored values, which include tokens.
func (s *MemoryStorage) String() string {
	return fmt.Sprintf("oauth.MemoryStorage{%d items}", s.Len())
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"portal/internal/events"
	"portal/internal/kvstore"
	"portal/pkg/logging"
)

// Manager owns the session metadata and its persistence.
type Manager struct {
	store kvstore.Store

	mu   sync.RWMutex
	meta Metadata
	// persisted is the document as last read or written by this manager.
	persisted string

	watchers *events.Bus[Metadata]
	sweeps   sync.WaitGroup
}

// NewManager creates a Manager over store. Call Load before use to pick up
// previously persisted metadata.
func NewManager(store kvstore.Store) *Manager {
	return &Manager{
		store:    store,
		meta:     Metadata{Profiles: []AccountProfile{}},
		watchers: events.NewBus[Metadata]("SessionManager"),
	}
}

// Store returns the durable store the manager persists to.
func (m *Manager) Store() kvstore.Store {
	return m.store
}

// Load reads the persisted metadata. A missing document yields empty
// metadata.
func (m *Manager) Load(ctx context.Context) error {
	meta, raw, err := m.read(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	m.persisted = raw
	m.watchers.Publish(meta.Clone())

	logging.Debug("SessionManager", "Loaded %d account profile(s)", len(meta.Profiles))
	return nil
}

func (m *Manager) read(ctx context.Context) (Metadata, string, error) {
	raw, ok, err := m.store.Get(ctx, MetadataKey)
	if err != nil {
		return Metadata{}, "", fmt.Errorf("failed to read session metadata: %w", err)
	}
	meta := Metadata{Profiles: []AccountProfile{}}
	if !ok || raw == "" {
		return meta, raw, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Metadata{}, "", fmt.Errorf("failed to parse session metadata: %w", err)
	}
	if meta.Profiles == nil {
		meta.Profiles = []AccountProfile{}
	}
	return meta, raw, nil
}

// persistLocked writes the in-memory metadata. Failures are logged and not
// returned: the in-memory copy stays authoritative for this process.
func (m *Manager) persistLocked(ctx context.Context) {
	data, err := json.Marshal(m.meta)
	if err != nil {
		logging.Error("SessionManager", err, "Failed to encode session metadata")
		return
	}
	if err := m.store.Set(ctx, MetadataKey, string(data)); err != nil {
		logging.Error("SessionManager", err, "Failed to persist session metadata")
		return
	}
	m.persisted = string(data)
}

// commitLocked persists the metadata and notifies watchers.
func (m *Manager) commitLocked(ctx context.Context) {
	m.persistLocked(ctx)
	m.watchers.Publish(m.meta.Clone())
}

// Metadata returns a snapshot of the current metadata.
func (m *Manager) Metadata() Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta.Clone()
}

// CurrentSessionID returns the active session.
func (m *Manager) CurrentSessionID() (ID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta.CurrentSessionID, m.meta.HasCurrentSession()
}

// CurrentStudent returns the UUID of the selected student, or "".
func (m *Manager) CurrentStudent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta.CurrentStudent
}

// FindAccountProfile returns the profile owned by id.
func (m *Manager) FindAccountProfile(id ID) (AccountProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.meta.Profile(id)
	return p.clone(), ok
}

// Profiles returns every known profile in creation order.
func (m *Manager) Profiles() []AccountProfile {
	return m.Metadata().Profiles
}

// CurrentProfile returns the profile of the active session.
func (m *Manager) CurrentProfile() (AccountProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.meta.HasCurrentSession() {
		return AccountProfile{}, false
	}
	p, ok := m.meta.Profile(m.meta.CurrentSessionID)
	return p.clone(), ok
}

// CurrentAffiliation returns the affiliation of the active profile, if it
// has one.
func (m *Manager) CurrentAffiliation() (Affiliation, bool) {
	p, ok := m.CurrentProfile()
	if !ok || p.Affiliation == "" {
		return "", false
	}
	return p.Affiliation, true
}

// IsCurrentSessionAuthenticated reports whether the active profile completed
// a login.
func (m *Manager) IsCurrentSessionAuthenticated() bool {
	p, ok := m.CurrentProfile()
	return ok && p.Authenticated
}

// UpdateMetadata applies u to the metadata, notifies watchers and persists
// the result. It returns the new metadata.
func (m *Manager) UpdateMetadata(ctx context.Context, u MetadataUpdate) Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.meta = u.Apply(m.meta)
	if m.meta.Profiles == nil {
		m.meta.Profiles = []AccountProfile{}
	}
	m.commitLocked(ctx)
	return m.meta.Clone()
}

// UpdateCurrentAccountProfileAndRemoveDuplicates applies u to the profile of
// the current session, then removes every other profile with the same
// account UUID together with its stored OAuth state. It returns the removed
// profiles.
func (m *Manager) UpdateCurrentAccountProfileAndRemoveDuplicates(ctx context.Context, u ProfileUpdate) ([]AccountProfile, error) {
	m.mu.Lock()

	idx := -1
	if m.meta.HasCurrentSession() {
		for i, p := range m.meta.Profiles {
			if p.SessionID == m.meta.CurrentSessionID {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, ErrNoCurrentProfile
	}

	updated := u.Apply(m.meta.Profiles[idx])
	m.meta.Profiles[idx] = updated
	m.persistLocked(ctx)

	var removed []AccountProfile
	if updated.AccountUUID != "" {
		kept := make([]AccountProfile, 0, len(m.meta.Profiles))
		for _, p := range m.meta.Profiles {
			if p.SessionID != updated.SessionID && strings.EqualFold(p.AccountUUID, updated.AccountUUID) {
				removed = append(removed, p)
				continue
			}
			kept = append(kept, p)
		}
		m.meta.Profiles = kept
	}
	if len(removed) > 0 {
		m.persistLocked(ctx)
	}
	m.watchers.Publish(m.meta.Clone())
	m.mu.Unlock()

	for _, p := range removed {
		logging.Info("SessionManager", "Removed duplicate session %s for account %s", p.SessionID, p.AccountUUID)
		m.deleteState(ctx, p.SessionID)
	}
	return removed, nil
}

// RemoveAccountProfile removes the profile owned by p.SessionID and its
// stored OAuth state. If it was the current session the selection is
// cleared. An orphan sweep is started in the background; Wait blocks until
// it is done.
func (m *Manager) RemoveAccountProfile(ctx context.Context, p AccountProfile) {
	m.mu.Lock()
	kept := make([]AccountProfile, 0, len(m.meta.Profiles))
	for _, existing := range m.meta.Profiles {
		if existing.SessionID != p.SessionID {
			kept = append(kept, existing)
		}
	}
	m.meta.Profiles = kept
	if m.meta.CurrentSessionID == p.SessionID {
		m.meta.CurrentSessionID = uuid.Nil
		m.meta.CurrentStudent = ""
	}
	m.commitLocked(ctx)
	m.mu.Unlock()

	m.deleteState(ctx, p.SessionID)

	sweepCtx := context.WithoutCancel(ctx)
	m.sweeps.Add(1)
	go func() {
		defer m.sweeps.Done()
		if _, err := m.SanitizeStorage(sweepCtx); err != nil {
			logging.Warn("SessionManager", "Orphan sweep failed: %v", err)
		}
	}()
}

// Wait blocks until background orphan sweeps have finished.
func (m *Manager) Wait() {
	m.sweeps.Wait()
}

// Close waits for background work and ends all watches.
func (m *Manager) Close() {
	m.Wait()
	m.watchers.Close()
}

// GenerateBaseContext creates an unauthenticated placeholder profile under a
// new session ID and returns the ID. The current selection is not changed.
func (m *Manager) GenerateBaseContext(ctx context.Context) ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := NewID()
	for {
		if _, exists := m.meta.Profile(id); !exists {
			break
		}
		id = NewID()
	}

	m.meta.Profiles = append(m.meta.Profiles, AccountProfile{SessionID: id})
	m.commitLocked(ctx)

	logging.Debug("SessionManager", "Generated base context %s", id)
	return id
}

// purgeConcurrency bounds parallel deletes against remote stores.
const purgeConcurrency = 4

// Purge removes every session and its stored OAuth state, then sweeps the
// store for orphans.
func (m *Manager) Purge(ctx context.Context) error {
	m.mu.Lock()
	profiles := m.meta.Profiles
	m.meta = Metadata{Profiles: []AccountProfile{}}
	m.commitLocked(ctx)
	m.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(purgeConcurrency)
	for _, p := range profiles {
		g.Go(func() error {
			m.deleteState(ctx, p.SessionID)
			return nil
		})
	}
	_ = g.Wait()

	if _, err := m.SanitizeStorage(ctx); err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	logging.Audit("session_purged", "All sessions purged",
		slog.Int("sessions", len(profiles)))
	return nil
}

// SanitizeStorage deletes every UUID-shaped key that does not belong to a
// known session and returns the deleted keys. Keys that are not UUIDs,
// including MetadataKey, are never touched.
func (m *Manager) SanitizeStorage(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored keys: %w", err)
	}

	m.mu.RLock()
	known := make(map[ID]struct{}, len(m.meta.Profiles))
	for _, p := range m.meta.Profiles {
		known[p.SessionID] = struct{}{}
	}
	m.mu.RUnlock()

	var removed []string
	for _, key := range keys {
		id, ok := parseSessionKey(key)
		if !ok {
			continue
		}
		if _, isKnown := known[id]; isKnown {
			continue
		}
		if err := m.store.Remove(ctx, key); err != nil {
			logging.Warn("SessionManager", "Failed to remove orphaned key %s: %v", key, err)
			continue
		}
		removed = append(removed, key)
	}

	if len(removed) > 0 {
		logging.Info("SessionManager", "Removed %d orphaned session key(s)", len(removed))
	}
	return removed, nil
}

// parseSessionKey accepts only the canonical 36 character UUID form.
func parseSessionKey(key string) (ID, bool) {
	if len(key) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Reload re-reads the persisted metadata, typically after another process
// changed the store, and returns the profiles that no longer exist. A
// document identical to the one this manager last wrote is ignored.
func (m *Manager) Reload(ctx context.Context) ([]AccountProfile, error) {
	meta, raw, err := m.read(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if raw == m.persisted {
		return nil, nil
	}
	m.persisted = raw

	var gone []AccountProfile
	for _, p := range m.meta.Profiles {
		if _, ok := meta.Profile(p.SessionID); !ok {
			gone = append(gone, p)
		}
	}
	m.meta = meta
	m.watchers.Publish(meta.Clone())
	return gone, nil
}

// ReadState returns the serialized OAuth state of a session. A session
// without stored state yields "".
func (m *Manager) ReadState(ctx context.Context, id ID) (string, error) {
	raw, _, err := m.store.Get(ctx, id.String())
	if err != nil {
		return "", fmt.Errorf("failed to read state of session %s: %w", id, err)
	}
	return raw, nil
}

// WriteState stores the serialized OAuth state of a session.
func (m *Manager) WriteState(ctx context.Context, id ID, serialized string) error {
	if err := m.store.Set(ctx, id.String(), serialized); err != nil {
		return fmt.Errorf("failed to write state of session %s: %w", id, err)
	}
	return nil
}

func (m *Manager) deleteState(ctx context.Context, id ID) {
	if err := m.store.Remove(ctx, id.String()); err != nil {
		logging.Warn("SessionManager", "Failed to delete state of session %s: %v", id, err)
		return
	}
	logging.Audit("session_state_deleted", "Deleted stored tokens",
		slog.String("session", id.String()))
}

// Watch streams metadata snapshots, starting with the current one. Only the
// latest snapshot is buffered. The channel is closed when ctx is done.
func (m *Manager) Watch(ctx context.Context) <-chan Metadata {
	m.mu.RLock()
	ch, cancel := m.watchers.SubscribeLatest(m.meta.Clone())
	m.mu.RUnlock()

	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch
}

// WatchAuthenticated streams whether the current session is authenticated,
// starting with the current value and emitting only changes.
func (m *Manager) WatchAuthenticated(ctx context.Context) <-chan bool {
	in := m.Watch(ctx)
	out := make(chan bool, 1)

	go func() {
		defer close(out)
		first := true
		var last bool
		for meta := range in {
			p, ok := meta.Profile(meta.CurrentSessionID)
			v := meta.HasCurrentSession() && ok && p.Authenticated
			if !first && v == last {
				continue
			}
			first = false
			last = v
			select {
			case <-out:
			default:
			}
			out <- v
		}
	}()
	return out
}

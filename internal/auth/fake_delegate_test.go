package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portal/internal/kvstore"
	"portal/internal/oauth"
	"portal/internal/session"
)

// Keys the fake delegate keeps in the shim.
const (
	fakeAccessToken  = "access_token"
	fakeRefreshToken = "refresh_token"
	fakeExpired      = "expired"
	fakeClaims       = "claims"
)

// fakeDelegate is an in-memory stand-in for the OAuth client. Tokens live in
// the configured storage so that they follow the session switches.
type fakeDelegate struct {
	mu            sync.Mutex
	settings      oauth.Settings
	storage       oauth.Storage
	handler       func(oauth.Event)
	discoveryErr  error
	refreshErr    error
	loginErr      error
	revokeErr     error
	claims        map[string]any
	endSessionURL string

	// block, when set, holds discovery until it is closed. entered receives
	// a value each time discovery starts.
	block   chan struct{}
	entered chan struct{}

	discoveries atomic.Int32
	refreshes   atomic.Int32
	revocations atomic.Int32
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{endSessionURL: "https://idp.example/logout"}
}

func (d *fakeDelegate) Configure(settings oauth.Settings, storage oauth.Storage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = settings
	d.storage = storage
}

func (d *fakeDelegate) OnEvent(handler func(oauth.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

func (d *fakeDelegate) emit(ev oauth.Event) {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (d *fakeDelegate) currentStorage() oauth.Storage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.storage
}

func (d *fakeDelegate) setDiscoveryErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discoveryErr = err
}

func (d *fakeDelegate) setClaims(claims map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claims = claims
}

func (d *fakeDelegate) blockDiscovery() (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.block = make(chan struct{})
	d.entered = make(chan struct{}, 8)
	block := d.block
	var once sync.Once
	return func() { once.Do(func() { close(block) }) }
}

func (d *fakeDelegate) LoadDiscoveryDocumentAndTryLogin(ctx context.Context) error {
	d.discoveries.Add(1)
	d.mu.Lock()
	block, entered, err := d.block, d.entered, d.discoveryErr
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", oauth.ErrDiscovery, ctx.Err())
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", oauth.ErrDiscovery, err)
	}
	d.emit(oauth.Event{Type: oauth.EventDiscoveryDocumentLoaded})
	return nil
}

func (d *fakeDelegate) HasValidAccessToken() bool {
	storage := d.currentStorage()
	if storage == nil {
		return false
	}
	token, _ := storage.GetItem(fakeAccessToken)
	expired, _ := storage.GetItem(fakeExpired)
	return token != "" && expired != "true"
}

func (d *fakeDelegate) CanRefresh() bool {
	storage := d.currentStorage()
	if storage == nil {
		return false
	}
	token, _ := storage.GetItem(fakeRefreshToken)
	return token != ""
}

func (d *fakeDelegate) Refresh(context.Context) error {
	d.refreshes.Add(1)
	d.mu.Lock()
	err := d.refreshErr
	d.mu.Unlock()
	if err != nil {
		d.emit(oauth.Event{Type: oauth.EventTokenRefreshError, Err: err})
		return err
	}
	storage := d.currentStorage()
	storage.SetItem(fakeAccessToken, "refreshed-access")
	storage.RemoveItem(fakeExpired)
	d.emit(oauth.Event{Type: oauth.EventTokenRefreshed})
	return nil
}

func (d *fakeDelegate) IdentityClaims() (map[string]any, bool) {
	storage := d.currentStorage()
	if storage == nil {
		return nil, false
	}
	raw, ok := storage.GetItem(fakeClaims)
	if !ok {
		return nil, false
	}
	var claims map[string]any
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, false
	}
	return claims, true
}

func (d *fakeDelegate) Login(context.Context, oauth.LoginOptions) error {
	d.mu.Lock()
	err, claims := d.loginErr, d.claims
	d.mu.Unlock()
	if err != nil {
		return err
	}
	storage := d.currentStorage()
	storage.SetItem(fakeAccessToken, "access")
	storage.SetItem(fakeRefreshToken, "refresh")
	if claims != nil {
		data, err := json.Marshal(claims)
		if err != nil {
			return err
		}
		storage.SetItem(fakeClaims, string(data))
	}
	d.emit(oauth.Event{Type: oauth.EventTokenReceived})
	return nil
}

func (d *fakeDelegate) RevokeTokens(context.Context) error {
	d.revocations.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revokeErr
}

func (d *fakeDelegate) EndSessionURL() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endSessionURL, d.endSessionURL != ""
}

func (d *fakeDelegate) Reset() {
	storage := d.currentStorage()
	for _, key := range []string{fakeAccessToken, fakeRefreshToken, fakeExpired, fakeClaims} {
		if storage != nil {
			storage.RemoveItem(key)
		}
	}
	d.emit(oauth.Event{Type: oauth.EventLogout})
}

// waitEntered blocks until a blocked discovery has started.
func (d *fakeDelegate) waitEntered(t *testing.T) {
	t.Helper()
	d.mu.Lock()
	entered := d.entered
	d.mu.Unlock()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("discovery was not started")
	}
}

// fakeWatcher lets a test trigger store change notifications.
type fakeWatcher struct {
	mu       sync.Mutex
	onChange func()
}

func (w *fakeWatcher) Watch(onChange func()) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = onChange
	return func() {}, nil
}

func (w *fakeWatcher) trigger() {
	w.mu.Lock()
	onChange := w.onChange
	w.mu.Unlock()
	onChange()
}

var _ kvstore.Watcher = (*fakeWatcher)(nil)

// Test fixtures

const (
	orgUUID      = "0b4b5e8c-1f55-4c47-9a5c-5b0a1e6f7d01"
	parentUUID   = "6a1f0a2e-7c1c-4f0e-8a8e-0d7b5c9b3a11"
	studentUUID  = "f3c2d1b0-9e8d-4c7b-a6f5-e4d3c2b1a021"
	linkedChild1 = "c1c1c1c1-0000-4000-8000-000000000001"
	linkedChild2 = "c2c2c2c2-0000-4000-8000-000000000002"
)

func parentClaims(account string) map[string]any {
	return map[string]any{
		ClaimSubject:     orgUUID + `\` + account,
		ClaimAffiliation: "parent/guardian",
		ClaimGivenName:   "Marit",
		ClaimOrgName:     "De Regenboog",
		ClaimStudents:    `[{"uuid":"` + linkedChild1 + `","naam":"Sem"},{"uuid":"` + linkedChild2 + `","naam":"Noor"}]`,
	}
}

func studentClaims(account string) map[string]any {
	return map[string]any{
		ClaimSubject:     orgUUID + ":" + account,
		ClaimAffiliation: "student",
		ClaimGivenName:   "Sem",
		ClaimOrgName:     "De Regenboog",
	}
}

func newTestService(t *testing.T) (*Service, *fakeDelegate, *kvstore.MemoryStore) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	sessions := session.NewManager(store)
	t.Cleanup(sessions.Close)

	d := newFakeDelegate()
	svc := NewService(sessions, d, Options{
		Identity: oauth.Settings{
			Issuer:   "https://idp.example",
			ClientID: "portal",
		},
		LoginCheckTimeout: time.Second,
		RevokeTimeout:     time.Second,
	})
	t.Cleanup(svc.Close)
	return svc, d, store
}

// initService runs Init and requires it to succeed.
func initService(t *testing.T, svc *Service) Event {
	t.Helper()
	ev, err := svc.Init(context.Background())
	require.NoError(t, err)
	return ev
}

// seedAuthenticated stores an authenticated parent profile with valid tokens
// without going through a login.
func seedAuthenticated(t *testing.T, svc *Service, account string) session.ID {
	t.Helper()
	ctx := context.Background()
	sessions := svc.Sessions()

	id := sessions.GenerateBaseContext(ctx)
	sessions.UpdateMetadata(ctx, session.MetadataUpdate{CurrentSessionID: &id})
	_, err := sessions.UpdateCurrentAccountProfileAndRemoveDuplicates(ctx, session.ProfileUpdate{
		Authenticated: session.Ptr(true),
		Affiliation:   session.Ptr(session.AffiliationParent),
		AccountUUID:   &account,
		Name:          session.Ptr("Seeded"),
		Students: &[]session.Student{
			{UUID: linkedChild1, Name: "Sem"},
			{UUID: linkedChild2, Name: "Noor"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, sessions.WriteState(ctx, id, `{"access_token":"access","refresh_token":"refresh"}`))
	return id
}

var errBoom = errors.New("boom")

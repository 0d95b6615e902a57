package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"portal/internal/config"
	"portal/internal/events"
	"portal/internal/kvstore"
	"portal/internal/oauth"
	"portal/internal/session"
	"portal/pkg/logging"
)

// ErrNoIdentityClaims is carried by OAuthError outcomes when a login produced
// no ID token claims.
var ErrNoIdentityClaims = errors.New("provider returned no identity claims")

// ErrRefreshFailed is carried by OAuthError outcomes when an expired access
// token could not be refreshed while switching.
var ErrRefreshFailed = errors.New("access token could not be refreshed")

// Delegate is the OAuth client the Service drives. *oauth.Client implements it.
type Delegate interface {
	Configure(settings oauth.Settings, storage oauth.Storage)
	OnEvent(handler func(oauth.Event))
	LoadDiscoveryDocumentAndTryLogin(ctx context.Context) error
	HasValidAccessToken() bool
	CanRefresh() bool
	Refresh(ctx context.Context) error
	IdentityClaims() (map[string]any, bool)
	Login(ctx context.Context, opts oauth.LoginOptions) error
	RevokeTokens(ctx context.Context) error
	EndSessionURL() (string, bool)
	Reset()
}

// Options configure a Service.
type Options struct {
	Identity oauth.Settings
	Login    oauth.LoginOptions

	// LoginCheckTimeout bounds IsLoggedIn.
	LoginCheckTimeout time.Duration

	// RevokeTimeout bounds token revocation during Logout.
	RevokeTimeout time.Duration
}

// OptionsFromConfig derives Service options from the loaded configuration.
func OptionsFromConfig(cfg config.PortalConfig) Options {
	return Options{
		Identity: oauth.Settings{
			Issuer:                cfg.Identity.Issuer,
			ClientID:              cfg.Identity.ClientID,
			Scopes:                cfg.Identity.Scopes,
			RedirectURL:           cfg.Identity.RedirectURL(),
			PostLogoutRedirectURL: cfg.Identity.PostLogoutRedirectURI,
		},
		Login: oauth.LoginOptions{
			CallbackPort: cfg.Identity.CallbackPort,
		},
		LoginCheckTimeout: cfg.Timeouts.LoginCheck,
		RevokeTimeout:     cfg.Timeouts.Revoke,
	}
}

func (o *Options) applyDefaults() {
	if o.LoginCheckTimeout <= 0 {
		o.LoginCheckTimeout = config.DefaultLoginCheckTimeout
	}
	if o.RevokeTimeout <= 0 {
		o.RevokeTimeout = config.DefaultRevokeTimeout
	}
}

// Service sequences session switches, login, logout and token lifecycle.
type Service struct {
	sessions *session.Manager
	delegate Delegate
	storage  *oauth.MemoryStorage
	opts     Options

	flights singleflight.Group
	// switching is set while switchContext runs. Delegate events seen
	// meanwhile only flush the shim.
	switching atomic.Bool

	mu sync.RWMutex
	// flightKey is the operation holding the switch slot and flightRefs
	// the number of callers sharing it.
	flightKey  string
	flightRefs int
	status     Status
	lastError  Event
	changed    bool
	// active is the session whose state the shim currently holds.
	active         session.ID
	interceptor    Interceptor
	interceptorGen int

	events   *events.Bus[Event]
	statuses *events.Bus[Status]
}

// NewService creates a Service. The delegate's event handler is replaced.
func NewService(sessions *session.Manager, delegate Delegate, opts Options) *Service {
	opts.applyDefaults()
	s := &Service{
		sessions: sessions,
		delegate: delegate,
		storage:  oauth.NewMemoryStorage(),
		opts:     opts,
		status:   StatusAuthInit,
		events:   events.NewBus[Event]("AuthService"),
		statuses: events.NewBus[Status]("AuthService"),
	}
	delegate.OnEvent(s.handleDelegateEvent)
	return s
}

// Sessions returns the session manager the service operates on.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Close ends all event and status subscriptions.
func (s *Service) Close() {
	s.events.Close()
	s.statuses.Close()
}

// Status returns the current state machine status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == st {
		return
	}
	logging.Debug("AuthService", "Status %s -> %s", s.status, st)
	s.status = st
	s.statuses.Publish(st)
}

// WatchStatus streams status changes until ctx is done. The channel holds
// the current status right away and only ever the latest one afterwards.
func (s *Service) WatchStatus(ctx context.Context) <-chan Status {
	s.mu.RLock()
	ch, cancel := s.statuses.SubscribeLatest(s.status)
	s.mu.RUnlock()
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch
}

// Events streams every outcome and asynchronous notification until ctx is
// done.
func (s *Service) Events(ctx context.Context) <-chan Event {
	ch, cancel := s.events.Subscribe(events.DefaultSubscriberBuffer)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch
}

// finish stamps the status onto ev, logs and broadcasts it.
func (s *Service) finish(ev Event) Event {
	s.mu.Lock()
	ev.Status = s.status
	if ev.Status == StatusError && ev.Failed() {
		s.lastError = ev
	}
	s.mu.Unlock()

	if ev.Failed() {
		logging.Warn("AuthService", "%s: %s", ev.Kind, ev.Message())
	} else {
		logging.Info("AuthService", "%s: %s", ev.Kind, ev.Message())
	}
	s.events.Publish(ev)
	return ev
}

// HasChangedContext reports whether the current session or student changed
// since the previous call.
func (s *Service) HasChangedContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.changed
	s.changed = false
	return changed
}

// exclusive runs fn in the switch slot. Callers with the same key share one
// run; a different key while the slot is held is rejected.
func (s *Service) exclusive(key string, fn func() Event) Event {
	if !s.acquire(key) {
		return s.finish(Event{Kind: events.ReasonSwitchRejected, Err: ErrSwitchInProgress})
	}
	defer s.release()

	v, _, shared := s.flights.Do(key, func() (any, error) {
		return fn(), nil
	})
	if shared {
		logging.Debug("AuthService", "Joined in-flight operation %s", key)
	}
	return v.(Event)
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flightKey != "" && s.flightKey != key {
		logging.Debug("AuthService", "Rejecting %s while %s is in flight", key, s.flightKey)
		return false
	}
	s.flightKey = key
	s.flightRefs++
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flightRefs--
	if s.flightRefs == 0 {
		s.flightKey = ""
	}
}

func switchKey(id session.ID, student string) string {
	return "switch:" + id.String() + "/" + student
}

// Init loads the persisted metadata and resumes the current session,
// creating a base context on first run. An error is returned only when the
// metadata cannot be loaded at all.
func (s *Service) Init(ctx context.Context) (Event, error) {
	if err := s.sessions.Load(ctx); err != nil {
		s.setStatus(StatusError)
		return Event{}, err
	}
	return s.exclusive("resume", func() Event { return s.resume(ctx) }), nil
}

func (s *Service) resume(ctx context.Context) Event {
	id, ok := s.sessions.CurrentSessionID()
	if ok {
		if _, found := s.sessions.FindAccountProfile(id); !found {
			ok = false
		}
	}
	if !ok {
		if profiles := s.sessions.Profiles(); len(profiles) > 0 {
			id = profiles[0].SessionID
		} else {
			id = s.sessions.GenerateBaseContext(ctx)
		}
	}
	return s.switchContext(ctx, id, "", StatusResuming)
}

// SwitchContext makes id the current session and validates it against the
// provider. student selects a linked student; when empty the current
// selection is kept for the same session, else the first student is used.
func (s *Service) SwitchContext(ctx context.Context, id session.ID, student string) Event {
	return s.exclusive(switchKey(id, student), func() Event {
		return s.switchContext(ctx, id, student, StatusSwitching)
	})
}

func (s *Service) switchContext(ctx context.Context, id session.ID, student string, inProgress Status) Event {
	profile, ok := s.sessions.FindAccountProfile(id)
	if !ok {
		return s.finish(Event{Kind: events.ReasonContextNotFound, SessionID: id})
	}
	student = s.resolveStudent(profile, student)

	s.switching.Store(true)
	defer s.switching.Store(false)
	s.setStatus(inProgress)

	// Save what the previous session left in the shim before replacing it.
	s.flush(ctx)
	s.loadShim(ctx, id)
	s.delegate.Configure(s.opts.Identity, s.storage)

	prevID, _ := s.sessions.CurrentSessionID()
	prevStudent := s.sessions.CurrentStudent()
	s.sessions.UpdateMetadata(ctx, session.MetadataUpdate{
		CurrentSessionID: &id,
		CurrentStudent:   &student,
	})
	if prevID != id || prevStudent != student {
		s.mu.Lock()
		s.changed = true
		s.mu.Unlock()
	}

	if err := s.delegate.LoadDiscoveryDocumentAndTryLogin(ctx); err != nil {
		s.flush(ctx)
		s.setStatus(StatusError)
		return s.finish(failure(err, id, &profile))
	}

	if !s.delegate.HasValidAccessToken() && s.delegate.CanRefresh() {
		logging.Debug("AuthService", "Access token of session %s expired, refreshing", id)
		if err := s.delegate.Refresh(ctx); err != nil {
			s.flush(ctx)
			s.setStatus(StatusError)
			return s.finish(Event{Kind: events.ReasonOAuthError, SessionID: id, Profile: &profile,
				Err: fmt.Errorf("%w: %w", ErrRefreshFailed, err)})
		}
	}

	s.flush(ctx)
	s.setStatus(StatusReady)
	return s.finish(Event{
		Kind:          events.ReasonSwitched,
		SessionID:     id,
		Student:       student,
		Profile:       &profile,
		Authenticated: s.delegate.HasValidAccessToken(),
	})
}

// resolveStudent picks the student to act for in profile. A student that is
// not linked to the profile is ignored.
func (s *Service) resolveStudent(profile session.AccountProfile, student string) string {
	if student != "" && profile.HasStudent(student) {
		return student
	}
	if cur, ok := s.sessions.CurrentSessionID(); ok && cur == profile.SessionID {
		if selected := s.sessions.CurrentStudent(); selected != "" && profile.HasStudent(selected) {
			return selected
		}
	}
	if len(profile.Students) > 0 {
		return profile.Students[0].UUID
	}
	return ""
}

// failure classifies a delegate error.
func failure(err error, id session.ID, profile *session.AccountProfile) Event {
	kind := events.ReasonOAuthError
	if errors.Is(err, oauth.ErrDiscovery) {
		kind = events.ReasonIDPUnreachable
	}
	return Event{Kind: kind, SessionID: id, Profile: profile, Err: err}
}

func (s *Service) activeSession() session.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// loadShim replaces the shim content with the stored state of id.
func (s *Service) loadShim(ctx context.Context, id session.ID) {
	s.storage.Clear()
	blob, err := s.sessions.ReadState(ctx, id)
	if err != nil {
		logging.Warn("AuthService", "Failed to read OAuth state of session %s: %v", id, err)
	} else if err := s.storage.Restore(blob); err != nil {
		logging.Warn("AuthService", "Discarding unreadable OAuth state of session %s: %v", id, err)
	}

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

// detach stops the shim from being flushed to the active session, which is
// about to be removed.
func (s *Service) detach() {
	s.mu.Lock()
	s.active = session.Nil
	s.mu.Unlock()
}

// flush writes the shim to the store under the active session. Failures are
// logged.
func (s *Service) flush(ctx context.Context) {
	id := s.activeSession()
	if id == session.Nil {
		return
	}
	if _, ok := s.sessions.FindAccountProfile(id); !ok {
		return
	}
	blob, err := s.storage.Backup()
	if err != nil {
		logging.Warn("AuthService", "Failed to serialize OAuth state: %v", err)
		return
	}
	if err := s.sessions.WriteState(ctx, id, blob); err != nil {
		logging.Warn("AuthService", "Failed to persist OAuth state of session %s: %v", id, err)
	}
}

func (s *Service) handleDelegateEvent(ev oauth.Event) {
	ctx := context.Background()
	if ev.CarriesTokens() {
		s.flush(ctx)
	}
	if s.switching.Load() {
		return
	}

	id := s.activeSession()
	switch ev.Type {
	case oauth.EventTokenReceived, oauth.EventTokenRefreshed:
		s.finish(Event{Kind: events.ReasonTokenReceived, SessionID: id, Authenticated: true})
	case oauth.EventTokenError, oauth.EventTokenRefreshError:
		s.finish(Event{Kind: events.ReasonOAuthError, SessionID: id, Err: ev.Err})
	}
}

// RegisterInterceptor installs the interceptor consulted by the Request
// methods and returns a function removing it. Registering a second
// interceptor without removing the first panics.
func (s *Service) RegisterInterceptor(i Interceptor) func() {
	if i == nil {
		panic("auth: nil switch interceptor")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interceptor != nil {
		panic("auth: a switch interceptor is already registered")
	}
	s.interceptor = i
	s.interceptorGen++
	gen := s.interceptorGen

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.interceptorGen == gen {
				s.interceptor = nil
			}
		})
	}
}

func (s *Service) approve(ctx context.Context, req SwitchRequest) bool {
	s.mu.RLock()
	interceptor := s.interceptor
	s.mu.RUnlock()
	if interceptor == nil {
		return true
	}
	return interceptor(ctx, req).Wait(ctx)
}

// RequestSwitchToProfile asks the interceptor, then switches.
func (s *Service) RequestSwitchToProfile(ctx context.Context, id session.ID, student string) Event {
	if !s.approve(ctx, SwitchRequest{SessionID: id, Student: student}) {
		return s.finish(Event{Kind: events.ReasonSwitchCancelled, SessionID: id})
	}
	return s.SwitchContext(ctx, id, student)
}

// RequestAddContextAndLogin asks the interceptor, then adds an account.
func (s *Service) RequestAddContextAndLogin(ctx context.Context) Event {
	if !s.approve(ctx, SwitchRequest{AddAccount: true}) {
		return s.finish(Event{Kind: events.ReasonSwitchCancelled})
	}
	return s.AddContextAndLogin(ctx)
}

// loginAttempt remembers what to restore when a login is rejected.
type loginAttempt struct {
	target      session.ID
	fresh       bool
	prev        session.ID
	hadPrev     bool
	prevStudent string
}

// AddContextAndLogin logs in an additional account. The current session is
// reused when it is an unauthenticated placeholder; otherwise a base context
// is generated.
func (s *Service) AddContextAndLogin(ctx context.Context) Event {
	return s.exclusive("add-account", func() Event {
		return s.addContextAndLogin(ctx)
	})
}

func (s *Service) addContextAndLogin(ctx context.Context) Event {
	a := loginAttempt{prevStudent: s.sessions.CurrentStudent()}
	a.prev, a.hadPrev = s.sessions.CurrentSessionID()

	if p, ok := s.sessions.CurrentProfile(); ok && !p.Authenticated {
		a.target = p.SessionID
	} else {
		a.target = s.sessions.GenerateBaseContext(ctx)
		a.fresh = true
	}

	if ev := s.switchContext(ctx, a.target, "", StatusSwitching); ev.Kind != events.ReasonSwitched {
		s.rollback(ctx, a)
		return ev
	}

	if err := s.delegate.Login(ctx, s.opts.Login); err != nil {
		s.rollback(ctx, a)
		return s.finish(failure(err, a.target, nil))
	}
	s.flush(ctx)
	return s.completeLogin(ctx, a)
}

// completeLogin validates the claims of a finished login and stores them in
// the current profile.
func (s *Service) completeLogin(ctx context.Context, a loginAttempt) Event {
	raw, ok := s.delegate.IdentityClaims()
	if !ok {
		s.rollback(ctx, a)
		return s.finish(Event{Kind: events.ReasonOAuthError, SessionID: a.target, Err: ErrNoIdentityClaims})
	}
	claims, err := ParseClaims(raw)
	if err != nil {
		s.rollback(ctx, a)
		return s.finish(Event{Kind: events.ReasonOAuthError, SessionID: a.target, Err: err})
	}

	switch claims.Affiliation {
	case session.AffiliationStudent:
		if s.hasOtherAuthenticatedAccount(a.target, claims.AccountUUID) {
			s.rollback(ctx, a)
			return s.finish(Event{
				Kind:        events.ReasonMultiLoginNotAllowed,
				SessionID:   a.target,
				Affiliation: string(claims.Affiliation),
			})
		}
	case session.AffiliationParent:
	default:
		s.rollback(ctx, a)
		return s.finish(Event{
			Kind:        events.ReasonUnsupportedAffiliation,
			SessionID:   a.target,
			Affiliation: string(claims.Affiliation),
		})
	}

	removed, err := s.sessions.UpdateCurrentAccountProfileAndRemoveDuplicates(ctx, session.ProfileUpdate{
		Authenticated:    session.Ptr(true),
		Affiliation:      &claims.Affiliation,
		AccountUUID:      &claims.AccountUUID,
		OrganizationUUID: &claims.OrganizationUUID,
		Name:             &claims.GivenName,
		SchoolName:       &claims.OrgName,
		Students:         &claims.Students,
	})
	if err != nil {
		s.rollback(ctx, a)
		return s.finish(Event{Kind: events.ReasonOAuthError, SessionID: a.target, Err: err})
	}

	profile, _ := s.sessions.FindAccountProfile(a.target)
	student := s.sessions.CurrentStudent()
	if student == "" || !profile.HasStudent(student) {
		student = ""
		if len(profile.Students) > 0 {
			student = profile.Students[0].UUID
		}
		s.sessions.UpdateMetadata(ctx, session.MetadataUpdate{CurrentStudent: &student})
	}

	s.flush(ctx)
	s.setStatus(StatusReady)
	logging.Audit("account_linked", "Account logged in to session",
		slog.String("session_id", a.target.String()),
		slog.String("affiliation", string(claims.Affiliation)),
		slog.Int("duplicates_removed", len(removed)))

	kind := events.ReasonAuthenticated
	if len(removed) > 0 {
		kind = events.ReasonDeduplicated
	}
	return s.finish(Event{
		Kind:          kind,
		SessionID:     a.target,
		Student:       student,
		Profile:       &profile,
		Removed:       removed,
		Authenticated: true,
	})
}

// hasOtherAuthenticatedAccount reports whether a session other than id holds
// an authenticated account other than account.
func (s *Service) hasOtherAuthenticatedAccount(id session.ID, account string) bool {
	for _, p := range s.sessions.Profiles() {
		if p.SessionID != id && p.Authenticated && p.AccountUUID != account {
			return true
		}
	}
	return false
}

// rollback undoes a rejected login: the tokens it obtained are dropped, a
// context created for it is removed and the previous session is restored.
func (s *Service) rollback(ctx context.Context, a loginAttempt) {
	s.delegate.Reset()
	if a.fresh {
		s.detach()
		if p, ok := s.sessions.FindAccountProfile(a.target); ok {
			s.sessions.RemoveAccountProfile(ctx, p)
		}
	} else {
		s.flush(ctx)
	}

	if a.hadPrev && a.prev != a.target {
		if _, ok := s.sessions.FindAccountProfile(a.prev); ok {
			s.switchContext(ctx, a.prev, a.prevStudent, StatusSwitching)
		}
	}
}

// RemoveCurrentContextAndSwitchIfLast removes the current profile and
// switches to the first remaining one. When none remains a fresh base
// context is created and the outcome reports that a provider logout is owed.
func (s *Service) RemoveCurrentContextAndSwitchIfLast(ctx context.Context) Event {
	return s.exclusive("remove-current", func() Event {
		return s.finish(s.removeCurrent(ctx))
	})
}

func (s *Service) removeCurrent(ctx context.Context) Event {
	p, ok := s.sessions.CurrentProfile()
	if !ok {
		id, _ := s.sessions.CurrentSessionID()
		return Event{Kind: events.ReasonContextNotFound, SessionID: id, Err: session.ErrNoCurrentProfile}
	}

	s.detach()
	s.delegate.Reset()
	s.sessions.RemoveAccountProfile(ctx, p)

	ev := Event{Kind: events.ReasonLoggedOut, Profile: &p, Removed: []session.AccountProfile{p}}
	var next Event
	if remaining := s.sessions.Profiles(); len(remaining) > 0 {
		next = s.switchContext(ctx, remaining[0].SessionID, "", StatusSwitching)
	} else {
		next = s.switchContext(ctx, s.sessions.GenerateBaseContext(ctx), "", StatusSwitching)
		ev.IDPLogoutOwed = true
	}
	ev.SessionID = next.SessionID
	ev.Student = next.Student
	ev.Authenticated = next.Authenticated
	return ev
}

// Logout revokes the tokens of the current session, best effort and time
// boxed, then removes it. Unless force is set, the outcome of removing the
// last account carries the provider's end-session URL.
func (s *Service) Logout(ctx context.Context, force bool) Event {
	return s.exclusive("logout", func() Event {
		endSessionURL, hasEndSession := s.delegate.EndSessionURL()

		revokeCtx, cancel := context.WithTimeout(ctx, s.opts.RevokeTimeout)
		if err := s.delegate.RevokeTokens(revokeCtx); err != nil {
			logging.Warn("AuthService", "Token revocation failed, logging out locally: %v", err)
		}
		cancel()

		ev := s.removeCurrent(ctx)
		if ev.Kind == events.ReasonLoggedOut && ev.IDPLogoutOwed && !force && hasEndSession {
			ev.LogoutURL = endSessionURL
		}
		return s.finish(ev)
	})
}

// Purge removes every session and starts over with a fresh base context.
func (s *Service) Purge(ctx context.Context) Event {
	return s.exclusive("purge", func() Event {
		s.detach()
		s.delegate.Reset()
		if err := s.sessions.Purge(ctx); err != nil {
			logging.Warn("AuthService", "Purge left entries behind: %v", err)
		}
		next := s.switchContext(ctx, s.sessions.GenerateBaseContext(ctx), "", StatusSwitching)
		return s.finish(Event{Kind: events.ReasonPurged, SessionID: next.SessionID})
	})
}

// RetryDiscovery repeats the switch to the current session, typically to
// leave StatusError once the provider is reachable again.
func (s *Service) RetryDiscovery(ctx context.Context) Event {
	id, ok := s.sessions.CurrentSessionID()
	if !ok {
		return s.exclusive("resume", func() Event { return s.resume(ctx) })
	}
	return s.SwitchContext(ctx, id, s.sessions.CurrentStudent())
}

// IsLoggedIn waits for the current switch to settle and reports whether the
// current session is authenticated. If nothing settles within the login
// check timeout, or the switch failed, the returned Event describes why.
func (s *Service) IsLoggedIn(ctx context.Context) (bool, Event) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LoginCheckTimeout)
	defer cancel()

	statuses := s.WatchStatus(ctx)
	for {
		select {
		case st, ok := <-statuses:
			if !ok {
				err := ctx.Err()
				if err == nil {
					err = context.Canceled
				}
				return false, Event{Kind: events.ReasonIDPUnreachable, Status: s.Status(), Err: err}
			}
			switch st {
			case StatusReady:
				return s.delegate.HasValidAccessToken() && s.sessions.IsCurrentSessionAuthenticated(), Event{}
			case StatusError:
				s.mu.RLock()
				last := s.lastError
				s.mu.RUnlock()
				return false, last
			}
		case <-ctx.Done():
			return false, Event{Kind: events.ReasonIDPUnreachable, Status: s.Status(), Err: ctx.Err()}
		}
	}
}

// WatchStore reloads the metadata whenever another process changes the
// store until ctx is done. Profiles that disappeared are reported as
// AccountRemoved; if the active session was among them the service resumes
// whatever session is now current.
func (s *Service) WatchStore(ctx context.Context, w kvstore.Watcher) error {
	changes := make(chan struct{}, 1)
	stop, err := w.Watch(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				s.handleStoreChange(ctx)
			}
		}
	}()
	return nil
}

func (s *Service) handleStoreChange(ctx context.Context) {
	gone, err := s.sessions.Reload(ctx)
	if err != nil {
		logging.Warn("AuthService", "Failed to reload session metadata: %v", err)
		return
	}
	for _, p := range gone {
		s.finish(Event{Kind: events.ReasonAccountRemoved, SessionID: p.SessionID, Profile: &p})
	}

	active := s.activeSession()
	if active == session.Nil {
		return
	}
	if _, ok := s.sessions.FindAccountProfile(active); !ok {
		s.exclusive("resume", func() Event { return s.resume(ctx) })
	}
}

package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	pkgoauth "portal/pkg/oauth"
	"portal/pkg/logging"
)

// DefaultHTTPTimeout bounds every request the client makes to the provider.
const DefaultHTTPTimeout = 30 * time.Second

// keyPendingRedirect holds the redirect URI of the pending authorization
// request; the token request must repeat it.
const keyPendingRedirect = "pending_redirect_uri"

// Settings points the client at a provider.
type Settings struct {
	Issuer                string
	ClientID              string
	Scopes                []string
	RedirectURL           string
	PostLogoutRedirectURL string
}

// LoginOptions tune an interactive login.
type LoginOptions struct {
	// CallbackPort is used when Settings.RedirectURL is empty. 0 picks a free port.
	CallbackPort int

	// Prompt is passed as the OIDC prompt parameter, e.g. "login".
	Prompt string

	// OnAuthURL is called with the authorization URL before the browser is
	// opened, so it can be shown to the user.
	OnAuthURL func(authURL string)

	// NoBrowser skips opening the system browser.
	NoBrowser bool

	// Timeout bounds the wait for the callback. Defaults to CallbackTimeout.
	Timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every provider request.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBrowser replaces the function that opens the authorization URL.
func WithBrowser(open func(url string) error) Option {
	return func(c *Client) {
		c.openBrowser = open
	}
}

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithDiscoveryTTL sets how long discovery documents are cached.
func WithDiscoveryTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.discoveryTTL = ttl
	}
}

// Client is an OpenID Connect relying party whose state lives in a Storage.
// One Client is reconfigured with Configure whenever the active session
// changes.
type Client struct {
	httpClient   *http.Client
	openBrowser  func(string) error
	now          func() time.Time
	discoveryTTL time.Duration
	discovery    *discoveryCache

	mu       sync.RWMutex
	settings Settings
	storage  Storage
	info     *providerInfo
	handler  func(Event)
}

// NewClient creates an unconfigured Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
		openBrowser:  OpenBrowser,
		now:          time.Now,
		discoveryTTL: DefaultDiscoveryTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.discovery = newDiscoveryCache(c.discoveryTTL, c.now)
	return c
}

// Configure points the client at a provider and a storage. Previously loaded
// discovery state is dropped.
func (c *Client) Configure(settings Settings, storage Storage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
	c.storage = storage
	c.info = nil
}

// OnEvent installs the event handler. Handlers run synchronously on the
// goroutine that caused the event.
func (c *Client) OnEvent(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *Client) emit(ev Event) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if ev.Err != nil {
		logging.Debug("OAuthClient", "Event %s: %v", ev.Type, ev.Err)
	} else {
		logging.Debug("OAuthClient", "Event %s", ev.Type)
	}
	if handler != nil {
		handler(ev)
	}
}

func (c *Client) snapshot() (Settings, Storage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.storage == nil || c.settings.Issuer == "" || c.settings.ClientID == "" {
		return Settings{}, nil, ErrNotConfigured
	}
	return c.settings, c.storage, nil
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.httpClient)
}

// loadDiscovery returns the provider for the configured issuer.
func (c *Client) loadDiscovery(ctx context.Context, settings Settings) (*providerInfo, error) {
	info, err := c.discovery.get(ctx, settings.Issuer, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	c.mu.Lock()
	if c.settings.Issuer == settings.Issuer {
		c.info = info
	}
	c.mu.Unlock()
	return info, nil
}

func (c *Client) providerInfo() *providerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// LoadDiscoveryDocumentAndTryLogin loads the provider's discovery document
// and, when an authorization response is pending in the storage, exchanges
// it for tokens.
func (c *Client) LoadDiscoveryDocumentAndTryLogin(ctx context.Context) error {
	settings, storage, err := c.snapshot()
	if err != nil {
		return err
	}

	info, err := c.loadDiscovery(ctx, settings)
	if err != nil {
		return err
	}
	c.emit(Event{Type: EventDiscoveryDocumentLoaded})

	return c.tryLogin(ctx, info, settings, storage)
}

// ClearDiscoveryCache forgets every cached discovery document.
func (c *Client) ClearDiscoveryCache() {
	c.discovery.clear()
}

func (c *Client) oauth2Config(info *providerInfo, settings Settings, redirectURL string) *oauth2.Config {
	endpoint := info.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := settings.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID}
	}

	return &oauth2.Config{
		ClientID:    settings.ClientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

// tryLogin completes a pending authorization response, if any.
func (c *Client) tryLogin(ctx context.Context, info *providerInfo, settings Settings, storage Storage) error {
	code, ok := storage.GetItem(keyPendingCode)
	if !ok || code == "" {
		return nil
	}
	returnedState, _ := storage.GetItem(keyPendingState)
	expectedState, _ := storage.GetItem(keyState)
	verifier, _ := storage.GetItem(keyVerifier)
	nonce, _ := storage.GetItem(keyNonce)
	redirectURL, ok := storage.GetItem(keyPendingRedirect)
	if !ok {
		redirectURL = settings.RedirectURL
	}
	for _, key := range []string{keyPendingCode, keyPendingState, keyPendingRedirect, keyState, keyVerifier, keyNonce} {
		storage.RemoveItem(key)
	}

	if expectedState == "" || returnedState != expectedState {
		c.emit(Event{Type: EventTokenError, Err: ErrStateMismatch})
		return ErrStateMismatch
	}

	cfg := c.oauth2Config(info, settings, redirectURL)
	tok, err := cfg.Exchange(c.httpContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		err = providerError(err)
		c.emit(Event{Type: EventTokenError, Err: err})
		return fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		err := errors.New("token response did not contain an id_token")
		c.emit(Event{Type: EventTokenError, Err: err})
		return err
	}

	idToken, err := c.verifyIDToken(ctx, info, settings, rawIDToken)
	if err != nil {
		c.emit(Event{Type: EventTokenError, Err: err})
		return err
	}
	if idToken.Nonce != nonce {
		c.emit(Event{Type: EventTokenError, Err: ErrNonceMismatch})
		return ErrNonceMismatch
	}

	c.storeToken(storage, tok)
	logging.Audit("token_stored", "Stored tokens after login",
		slog.String("issuer", settings.Issuer),
		slog.String("subject", idToken.Subject))
	c.emit(Event{Type: EventTokenReceived})
	return nil
}

func (c *Client) verifyIDToken(ctx context.Context, info *providerInfo, settings Settings, raw string) (*oidc.IDToken, error) {
	verifier := info.provider.Verifier(&oidc.Config{
		ClientID: settings.ClientID,
		Now:      c.now,
	})
	idToken, err := verifier.Verify(c.httpContext(ctx), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	return idToken, nil
}

// providerError turns an OAuth error response into a ProviderError.
func providerError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return &ProviderError{Code: re.ErrorCode, Description: re.ErrorDescription}
	}
	return err
}

func (c *Client) storeToken(storage Storage, t *oauth2.Token) {
	tok := pkgoauth.FromOAuth2Token(t)

	storage.SetItem(keyAccessToken, tok.AccessToken)
	if tok.TokenType != "" {
		storage.SetItem(keyTokenType, tok.TokenType)
	}
	if tok.RefreshToken != "" {
		storage.SetItem(keyRefreshToken, tok.RefreshToken)
	}
	if tok.IDToken != "" {
		storage.SetItem(keyIDToken, tok.IDToken)
	}
	if tok.Scope != "" {
		storage.SetItem(keyScope, tok.Scope)
	}
	if tok.ExpiresAt.IsZero() {
		storage.RemoveItem(keyExpiresAt)
	} else {
		storage.SetItem(keyExpiresAt, strconv.FormatInt(tok.ExpiresAt.Unix(), 10))
	}
}

// storedToken reads the token set from the storage.
func storedToken(storage Storage) *pkgoauth.Token {
	tok := &pkgoauth.Token{}
	tok.AccessToken, _ = storage.GetItem(keyAccessToken)
	tok.TokenType, _ = storage.GetItem(keyTokenType)
	tok.RefreshToken, _ = storage.GetItem(keyRefreshToken)
	tok.IDToken, _ = storage.GetItem(keyIDToken)
	tok.Scope, _ = storage.GetItem(keyScope)
	if raw, ok := storage.GetItem(keyExpiresAt); ok {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			tok.ExpiresAt = time.Unix(secs, 0)
		}
	}
	return tok
}

func (c *Client) currentStorage() Storage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storage
}

// HasValidAccessToken reports whether an access token is stored that does
// not expire within pkgoauth.DefaultExpiryMargin.
func (c *Client) HasValidAccessToken() bool {
	storage := c.currentStorage()
	if storage == nil {
		return false
	}
	tok := storedToken(storage)
	return tok.AccessToken != "" && !tok.IsExpiredAt(c.now(), pkgoauth.DefaultExpiryMargin)
}

// CanRefresh reports whether a refresh token is stored.
func (c *Client) CanRefresh() bool {
	storage := c.currentStorage()
	if storage == nil {
		return false
	}
	refresh, _ := storage.GetItem(keyRefreshToken)
	return refresh != ""
}

// Refresh performs a refresh token grant.
func (c *Client) Refresh(ctx context.Context) error {
	settings, storage, err := c.snapshot()
	if err != nil {
		return err
	}
	refresh, _ := storage.GetItem(keyRefreshToken)
	if refresh == "" {
		return ErrNoRefreshToken
	}

	info := c.providerInfo()
	if info == nil {
		if info, err = c.loadDiscovery(ctx, settings); err != nil {
			return err
		}
	}

	cfg := c.oauth2Config(info, settings, settings.RedirectURL)
	tok, err := cfg.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		err = providerError(err)
		c.emit(Event{Type: EventTokenRefreshError, Err: err})
		return fmt.Errorf("token refresh failed: %w", err)
	}

	if rawIDToken, _ := tok.Extra("id_token").(string); rawIDToken != "" {
		if _, err := c.verifyIDToken(ctx, info, settings, rawIDToken); err != nil {
			c.emit(Event{Type: EventTokenRefreshError, Err: err})
			return err
		}
	}

	c.storeToken(storage, tok)
	c.emit(Event{Type: EventTokenRefreshed})
	return nil
}

// IdentityClaims returns the claims of the stored ID token. The token was
// verified when it was received, so its signature is not checked again.
func (c *Client) IdentityClaims() (map[string]any, bool) {
	storage := c.currentStorage()
	if storage == nil {
		return nil, false
	}
	raw, ok := storage.GetItem(keyIDToken)
	if !ok || raw == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		logging.Warn("OAuthClient", "Stored ID token is malformed: %v", err)
		return nil, false
	}
	return map[string]any(claims), true
}

// Login runs an interactive authorization code flow with PKCE through the
// system browser and stores the resulting tokens.
func (c *Client) Login(ctx context.Context, opts LoginOptions) error {
	settings, storage, err := c.snapshot()
	if err != nil {
		return err
	}
	info, err := c.loadDiscovery(ctx, settings)
	if err != nil {
		return err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = CallbackTimeout
	}
	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	port, path := opts.CallbackPort, "/callback"
	if settings.RedirectURL != "" {
		u, err := url.Parse(settings.RedirectURL)
		if err != nil {
			return fmt.Errorf("invalid redirect URL: %w", err)
		}
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		}
		if u.Path != "" {
			path = u.Path
		}
	}

	server := NewCallbackServer(port, path)
	redirectURL, err := server.Start(loginCtx)
	if err != nil {
		return err
	}
	defer server.Stop()
	if settings.RedirectURL != "" {
		redirectURL = settings.RedirectURL
	}

	state, err := pkgoauth.GenerateState()
	if err != nil {
		return err
	}
	nonce, err := pkgoauth.GenerateNonce()
	if err != nil {
		return err
	}
	verifier := oauth2.GenerateVerifier()

	storage.SetItem(keyState, state)
	storage.SetItem(keyNonce, nonce)
	storage.SetItem(keyVerifier, verifier)

	authOpts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	}
	if opts.Prompt != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	authURL := c.oauth2Config(info, settings, redirectURL).AuthCodeURL(state, authOpts...)

	if opts.OnAuthURL != nil {
		opts.OnAuthURL(authURL)
	}
	if !opts.NoBrowser {
		if err := c.openBrowser(authURL); err != nil {
			logging.Warn("OAuthClient", "Could not open browser: %v", err)
		}
	}

	result, err := server.WaitForCallback(loginCtx)
	if err != nil {
		return fmt.Errorf("waiting for login callback: %w", err)
	}
	if result.IsError() {
		perr := &ProviderError{Code: result.Error, Description: result.ErrorDescription}
		c.emit(Event{Type: EventTokenError, Err: perr})
		return perr
	}

	storage.SetItem(keyPendingCode, result.Code)
	storage.SetItem(keyPendingState, result.State)
	storage.SetItem(keyPendingRedirect, redirectURL)
	return c.tryLogin(ctx, info, settings, storage)
}

// RevokeTokens revokes the stored refresh and access tokens at the
// provider's revocation endpoint (RFC 7009). Providers without one are
// skipped.
func (c *Client) RevokeTokens(ctx context.Context) error {
	settings, storage, err := c.snapshot()
	if err != nil {
		return err
	}
	info := c.providerInfo()
	if info == nil {
		if info, err = c.loadDiscovery(ctx, settings); err != nil {
			return err
		}
	}
	if info.metadata.RevocationEndpoint == "" {
		logging.Debug("OAuthClient", "Provider has no revocation endpoint")
		return nil
	}

	tok := storedToken(storage)
	var errs []error
	for _, t := range []struct{ value, hint string }{
		{tok.RefreshToken, "refresh_token"},
		{tok.AccessToken, "access_token"},
	} {
		if t.value == "" {
			continue
		}
		if err := c.revoke(ctx, info.metadata.RevocationEndpoint, settings.ClientID, t.value, t.hint); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		logging.Audit("token_revoked", "Revoked tokens at the provider",
			slog.String("issuer", settings.Issuer))
	}
	return errors.Join(errs...)
}

func (c *Client) revoke(ctx context.Context, endpoint, clientID, token, hint string) error {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
		"client_id":       {clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoking %s: %w", hint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoking %s: unexpected status %d", hint, resp.StatusCode)
	}
	return nil
}

// EndSessionURL returns the provider's end-session URL for the stored ID
// token, if the provider supports RP-initiated logout.
func (c *Client) EndSessionURL() (string, bool) {
	info := c.providerInfo()
	if info == nil || info.metadata.EndSessionEndpoint == "" {
		return "", false
	}
	u, err := url.Parse(info.metadata.EndSessionEndpoint)
	if err != nil {
		return "", false
	}

	c.mu.RLock()
	settings, storage := c.settings, c.storage
	c.mu.RUnlock()

	q := u.Query()
	if storage != nil {
		if idToken, _ := storage.GetItem(keyIDToken); idToken != "" {
			q.Set("id_token_hint", idToken)
		}
	}
	if settings.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", settings.PostLogoutRedirectURL)
	}
	q.Set("client_id", settings.ClientID)
	u.RawQuery = q.Encode()
	return u.String(), true
}

// Reset clears everything the client stored.
func (c *Client) Reset() {
	storage := c.currentStorage()
	if storage == nil {
		return
	}
	if ms, ok := storage.(*MemoryStorage); ok {
		ms.Clear()
	} else {
		for _, key := range []string{
			keyAccessToken, keyRefreshToken, keyIDToken, keyExpiresAt, keyTokenType, keyScope,
			keyNonce, keyState, keyVerifier, keyPendingCode, keyPendingState, keyPendingRedirect,
		} {
			storage.RemoveItem(key)
		}
	}
	c.emit(Event{Type: EventLogout})
}

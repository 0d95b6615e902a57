package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testClientID = "portal-test"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

type codeGrant struct {
	nonce     string
	challenge string
	redirect  string
}

// testProvider is a minimal OpenID Connect provider.
type testProvider struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	discoveryHits atomic.Int32

	mu           sync.Mutex
	codes        map[string]codeGrant
	nextCode     int
	refreshToken string
	issued       int
	revoked      []string
	rejectToken  bool
	claims       map[string]any
	expiresIn    int
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()
	p := &testProvider{
		t:            t,
		key:          signingKey(t),
		codes:        make(map[string]codeGrant),
		refreshToken: "refresh-0",
		expiresIn:    3600,
		claims: map[string]any{
			"sub":         "org:account",
			"given_name":  "Sanne",
			"affiliation": "student",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/jwks", p.handleJWKS)
	mux.HandleFunc("/authorize", p.handleAuthorize)
	mux.HandleFunc("/token", p.handleToken)
	mux.HandleFunc("/revoke", p.handleRevoke)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *testProvider) issuer() string {
	return p.server.URL
}

func (p *testProvider) settings() Settings {
	return Settings{
		Issuer:                p.issuer(),
		ClientID:              testClientID,
		Scopes:                []string{"openid", "profile", "offline_access"},
		PostLogoutRedirectURL: "http://localhost/bye",
	}
}

func (p *testProvider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	p.discoveryHits.Add(1)
	writeJSON(w, map[string]any{
		"issuer":                                p.issuer(),
		"authorization_endpoint":                p.issuer() + "/authorize",
		"token_endpoint":                        p.issuer() + "/token",
		"jwks_uri":                              p.issuer() + "/jwks",
		"revocation_endpoint":                   p.issuer() + "/revoke",
		"end_session_endpoint":                  p.issuer() + "/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *testProvider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

// issueCode registers an authorization code as if the user had logged in.
func (p *testProvider) issueCode(nonce, challenge, redirect string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextCode++
	code := fmt.Sprintf("code-%d", p.nextCode)
	p.codes[code] = codeGrant{nonce: nonce, challenge: challenge, redirect: redirect}
	return code
}

// handleAuthorize logs the user in immediately.
func (p *testProvider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("code_challenge_method") != "S256" {
		http.Error(w, "pkce required", http.StatusBadRequest)
		return
	}
	code := p.issueCode(q.Get("nonce"), q.Get("code_challenge"), q.Get("redirect_uri"))

	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rq := redirect.Query()
	rq.Set("code", code)
	rq.Set("state", q.Get("state"))
	redirect.RawQuery = rq.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *testProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rejectToken {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"session expired"}`))
		return
	}

	var nonce string
	switch r.Form.Get("grant_type") {
	case "authorization_code":
		grant, ok := p.codes[r.Form.Get("code")]
		if !ok {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		delete(p.codes, r.Form.Get("code"))
		sum := sha256.Sum256([]byte(r.Form.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != grant.challenge {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		if grant.redirect != "" && grant.redirect != r.Form.Get("redirect_uri") {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		nonce = grant.nonce
	case "refresh_token":
		if r.Form.Get("refresh_token") != p.refreshToken {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		return
	}

	p.issued++
	p.refreshToken = fmt.Sprintf("refresh-%d", p.issued)
	writeJSON(w, map[string]any{
		"access_token":  fmt.Sprintf("access-%d", p.issued),
		"token_type":    "Bearer",
		"refresh_token": p.refreshToken,
		"expires_in":    p.expiresIn,
		"id_token":      p.signIDToken(nonce),
	})
}

func (p *testProvider) signIDToken(nonce string) string {
	claims := jwt.MapClaims{
		"iss": p.issuer(),
		"aud": testClientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range p.claims {
		claims[k] = v
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(p.key)
	require.NoError(p.t, err)
	return signed
}

func (p *testProvider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.revoked = append(p.revoked, r.Form.Get("token"))
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *testProvider) revokedTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// followInBackground acts as the system browser: it follows the
// authorization URL to the callback server.
func followInBackground(authURL string) error {
	go func() {
		resp, err := http.Get(authURL)
		if err == nil {
			resp.Body.Close()
		}
	}()
	return nil
}

// Package oauth implements the OpenID Connect client that portal
// reconfigures for every session.
//
// # Core Components
//
//   - MemoryStorage: the synchronous key-value map the client keeps its
//     tokens, nonce, state and PKCE verifier in. Backup and Restore move its
//     whole content to and from a durable store as one JSON blob.
//   - Client: discovery (coreos/go-oidc), the authorization code flow with
//     PKCE and a local callback server, refresh (golang.org/x/oauth2),
//     revocation and end-session URLs.
//   - CallbackServer: a one-shot local HTTP server receiving the
//     authorization response.
//
// # Security
//
//   - PKCE (S256) is used for every authorization request
//   - state and nonce are generated per request and checked on return
//   - ID tokens are verified against the provider keys when received
//   - token values are never logged
//
// # Usage
//
//	storage := oauth.NewMemoryStorage()
//	_ = storage.Restore(blob)
//
//	client := oauth.NewClient()
//	client.Configure(oauth.Settings{Issuer: issuer, ClientID: clientID}, storage)
//	if err := client.LoadDiscoveryDocumentAndTryLogin(ctx); err != nil {
//	    // errors.Is(err, oauth.ErrDiscovery) when the provider is unreachable
//	}
//	if !client.HasValidAccessToken() && client.CanRefresh() {
//	    err = client.Refresh(ctx)
//	}
package oauth

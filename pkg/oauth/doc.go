// Package oauth provides OAuth 2.0 and OpenID Connect types shared by the
// portal client and its tests.
//
// # Core Components
//
//   - Token: token set with expiry checking, converted from
//     golang.org/x/oauth2 token responses
//   - ProviderMetadata: discovery document fields that go-oidc does not
//     expose directly (revocation and end-session endpoints)
//   - GenerateState, GenerateNonce: random request parameters
//
// # Usage
//
//	state, err := oauth.GenerateState()
//	tok := oauth.FromOAuth2Token(t)
//	if tok.IsExpiredAt(time.Now(), oauth.DefaultExpiryMargin) { ... }
package oauth

package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestToken_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		want      bool
	}{
		{name: "no expiry", want: false},
		{name: "far future", expiresAt: now.Add(time.Hour), margin: DefaultExpiryMargin, want: false},
		{name: "within margin", expiresAt: now.Add(30 * time.Second), margin: DefaultExpiryMargin, want: true},
		{name: "already expired", expiresAt: now.Add(-time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{AccessToken: "a", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, tok.IsExpiredAt(now, tt.margin))
		})
	}
}

func TestToken_Scopes(t *testing.T) {
	assert.Nil(t, (&Token{}).Scopes())
	assert.Equal(t, []string{"openid", "profile"}, (&Token{Scope: "openid  profile"}).Scopes())
}

func TestFromOAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	src := (&oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
	}).WithExtra(map[string]interface{}{"id_token": "id", "scope": "openid"})

	tok := FromOAuth2Token(src)
	assert.Equal(t, "id", tok.IDToken)
	assert.Equal(t, "openid", tok.Scope)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.ExpiresAt))
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

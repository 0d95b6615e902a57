package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0600))
	return dir
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, `
identity:
  issuer: https://login.example.org
  clientID: portal-cli
timeouts:
  revoke: 5s
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://login.example.org", cfg.Identity.Issuer)
	assert.Equal(t, "portal-cli", cfg.Identity.ClientID)
	assert.Equal(t, DefaultScopes, cfg.Identity.Scopes)
	assert.Equal(t, DefaultCallbackPort, cfg.Identity.CallbackPort)
	assert.Equal(t, StorageBackendFile, cfg.Storage.Backend)
	assert.Equal(t, DefaultLoginCheckTimeout, cfg.Timeouts.LoginCheck)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Revoke)
}

func TestLoadConfig_Template(t *testing.T) {
	t.Setenv("PORTAL_TEST_TENANT", "lyceum")
	dir := writeConfig(t, `
identity:
  issuer: https://login.example.org/{{ env "PORTAL_TEST_TENANT" | default "demo" }}
  clientID: {{ env "PORTAL_TEST_UNSET" | default "fallback-client" | quote }}
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.org/lyceum", cfg.Identity.Issuer)
	assert.Equal(t, "fallback-client", cfg.Identity.ClientID)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantType string
	}{
		{
			name:     "bad template",
			content:  "identity:\n  issuer: {{ nope }}\n",
			wantType: "template",
		},
		{
			name:     "bad yaml",
			content:  "identity: [unclosed\n",
			wantType: "parse",
		},
		{
			name:     "invalid backend",
			content:  "storage:\n  backend: floppy\n",
			wantType: "validation",
		},
		{
			name:     "redis without address",
			content:  "storage:\n  backend: redis\n",
			wantType: "validation",
		},
		{
			name:     "relative issuer",
			content:  "identity:\n  issuer: login.example.org\n",
			wantType: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)
			_, err := LoadConfig(dir)
			require.Error(t, err)

			var ce ConfigurationError
			require.True(t, errors.As(err, &ce), "expected ConfigurationError, got %T", err)
			assert.Equal(t, tt.wantType, ce.ErrorType)
			assert.Equal(t, filepath.Join(dir, configFileName), ce.FilePath)
			assert.Contains(t, ce.DetailedError(), "Configuration Error")
		})
	}
}

func TestRedirectURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/callback", IdentityConfig{}.RedirectURL())
	assert.Equal(t, "http://localhost:8085/callback", IdentityConfig{CallbackPort: 8085}.RedirectURL())
	assert.Equal(t, "https://app.example.org/cb", IdentityConfig{RedirectURI: "https://app.example.org/cb"}.RedirectURL())
}

func TestRequireIdentity(t *testing.T) {
	err := RequireIdentity(IdentityConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity.issuer")
	assert.Contains(t, err.Error(), "identity.clientID")

	assert.NoError(t, RequireIdentity(IdentityConfig{Issuer: "https://idp", ClientID: "c"}))
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is wrong")
	assert.Equal(t, "field 'a': is wrong", errs.Error())

	errs.Add("b", "is also wrong", 42)
	assert.Equal(t, "validation failed: field 'a': is wrong; field 'b': is also wrong", errs.Error())
	assert.Equal(t, 42, errs[1].Value)
}

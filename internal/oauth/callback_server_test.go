package oauth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackServer_Success(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewCallbackServer(0, "")
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	defer s.Stop()
	assert.True(t, strings.HasSuffix(redirect, "/callback"))
	assert.Equal(t, redirect, s.RedirectURL())

	resp, err := http.Get(redirect + "?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, string(body), "Logged in")

	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.False(t, result.IsError())
}

func TestCallbackServer_ErrorAndReplay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewCallbackServer(0, "/cb")
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get(redirect + "?error=access_denied&error_description=%3Cscript%3E")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NotContains(t, string(body), "<script>", "description is escaped")

	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)

	resp, err = http.Get(redirect + "?code=again")
	if err == nil {
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestCallbackServer_WaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewCallbackServer(0, "")
	_, err := s.Start(ctx)
	require.NoError(t, err)

	cancel()
	_, err = s.WaitForCallback(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

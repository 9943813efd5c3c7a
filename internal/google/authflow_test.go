package google

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// visit simulates the browser following the consent page redirect back to
// the loopback server, optionally tampering with the callback parameters.
func visit(t *testing.T, authURL string, tamper func(url.Values)) error {
	t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, MeetSpaceCreatedScope, q.Get("scope"))

	redirect, err := url.Parse(q.Get("redirect_uri"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", redirect.Hostname())

	callback := url.Values{"code": {"auth-code"}, "state": {q.Get("state")}}
	if tamper != nil {
		tamper(callback)
	}
	redirect.RawQuery = callback.Encode()

	resp, err := http.Get(redirect.String())
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func TestLocalServerFlow_Authorize(t *testing.T) {
	server := newFakeTokenServer(t)
	conf := testOAuthConfig(server.URL)

	var redirectURI string
	flow := &LocalServerFlow{
		Timeout: 5 * time.Second,
		OpenBrowser: func(authURL string) error {
			u, err := url.Parse(authURL)
			require.NoError(t, err)
			redirectURI = u.Query().Get("redirect_uri")
			return visit(t, authURL, nil)
		},
	}

	tok, err := flow.Authorize(context.Background(), conf)
	require.NoError(t, err)
	assert.Equal(t, "ya29.new-authorization_code", tok.AccessToken)
	assert.Equal(t, "1//from-exchange", tok.RefreshToken)

	req := server.lastRequest()
	assert.Equal(t, "authorization_code", req.Get("grant_type"))
	assert.Equal(t, "auth-code", req.Get("code"))
	assert.NotEmpty(t, req.Get("code_verifier"))
	assert.Equal(t, redirectURI, req.Get("redirect_uri"))
	assert.Empty(t, conf.RedirectURL, "the caller's config is not modified")
}

func TestLocalServerFlow_Failures(t *testing.T) {
	tests := []struct {
		name        string
		tamper      func(url.Values)
		errContains string
	}{
		{
			name:        "state mismatch",
			tamper:      func(v url.Values) { v.Set("state", "forged") },
			errContains: "state mismatch",
		},
		{
			name:        "access denied",
			tamper:      func(v url.Values) { v.Del("code"); v.Set("error", "access_denied") },
			errContains: "authorization denied: access_denied",
		},
		{
			name:        "missing code",
			tamper:      func(v url.Values) { v.Del("code") },
			errContains: "no authorization code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeTokenServer(t)
			flow := &LocalServerFlow{
				Timeout: 5 * time.Second,
				OpenBrowser: func(authURL string) error {
					return visit(t, authURL, tt.tamper)
				},
			}

			_, err := flow.Authorize(context.Background(), testOAuthConfig(server.URL))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.Empty(t, server.grants(), "no code exchange after a rejected callback")
		})
	}
}

func TestLocalServerFlow_Timeout(t *testing.T) {
	flow := &LocalServerFlow{Timeout: 50 * time.Millisecond}

	_, err := flow.Authorize(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for authorization callback")
}

func TestLocalServerFlow_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	flow := &LocalServerFlow{
		Timeout: time.Minute,
		OpenBrowser: func(string) error {
			cancel()
			return nil
		},
	}

	_, err := flow.Authorize(ctx, testOAuthConfig("http://127.0.0.1:1/token"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbackServer_IgnoresOtherPaths(t *testing.T) {
	srv := newCallbackServer(0, "state")
	require.NoError(t, srv.start())
	defer srv.stop()

	resp, err := http.Get(srv.redirectURI() + "favicon.ico")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	select {
	case err := <-srv.errChan:
		t.Fatalf("unexpected callback error: %v", err)
	default:
	}
}

func TestCallbackServer_PortInUse(t *testing.T) {
	first := newCallbackServer(0, "a")
	require.NoError(t, first.start())
	defer first.stop()

	second := newCallbackServer(first.port, "b")
	err := second.start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestConsoleFlow_Authorize(t *testing.T) {
	server := newFakeTokenServer(t)
	var out strings.Builder
	flow := &ConsoleFlow{In: strings.NewReader("pasted-code\n"), Out: &out}

	tok, err := flow.Authorize(context.Background(), testOAuthConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "ya29.new-authorization_code", tok.AccessToken)

	assert.Contains(t, out.String(), "https://accounts.example.com/o/oauth2/auth?")
	req := server.lastRequest()
	assert.Equal(t, "pasted-code", req.Get("code"))
	assert.Equal(t, consoleRedirectURL, req.Get("redirect_uri"))
	assert.NotEmpty(t, req.Get("code_verifier"))
}

func TestConsoleFlow_EmptyInput(t *testing.T) {
	flow := &ConsoleFlow{In: strings.NewReader(""), Out: io.Discard}

	_, err := flow.Authorize(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read authorization code")
}

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		errContains string
	}{
		{name: "bare code", input: "  4/0Abc  ", want: "4/0Abc"},
		{name: "redirect url", input: "http://localhost/?state=s1&code=4/0Xyz&scope=x", want: "4/0Xyz"},
		{name: "redirect url without state", input: "http://localhost/?code=c", want: "c"},
		{name: "empty", input: " ", errContains: "no authorization code entered"},
		{name: "state mismatch", input: "http://localhost/?state=other&code=c", errContains: "state mismatch"},
		{name: "denied", input: "http://localhost/?error=access_denied", errContains: "authorization denied"},
		{name: "url without code", input: "http://localhost/?state=s1", errContains: "no authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAuthCode(tt.input, "s1")
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package google

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

// DefaultAuthTimeout bounds how long LocalServerFlow waits for the callback.
const DefaultAuthTimeout = 5 * time.Minute

// consoleRedirectURL is registered implicitly for installed applications.
// The browser fails to load it, and the user copies the address instead.
const consoleRedirectURL = "http://localhost"

// CredentialProvider obtains a new token interactively.
type CredentialProvider interface {
	Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// LocalServerFlow authorizes through the browser and receives the
// authorization code on a loopback redirect server.
type LocalServerFlow struct {
	// Port for the redirect server; 0 picks a free port.
	Port int

	// Timeout defaults to DefaultAuthTimeout.
	Timeout time.Duration

	// OpenBrowser opens the consent page. Nil only logs the URL.
	OpenBrowser func(url string) error

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

// Authorize implements CredentialProvider.
func (f *LocalServerFlow) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	srv := newCallbackServer(f.Port, state)
	if err := srv.start(); err != nil {
		return nil, err
	}
	defer func() {
		if err := srv.stop(); err != nil {
			logger.Debug("Callback server shutdown failed", "error", err)
		}
	}()

	c := *conf
	c.RedirectURL = srv.redirectURI()

	verifier := oauth2.GenerateVerifier()
	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	logger.Info("Open the following URL in a browser to authorize meetbot", "url", authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			logger.Warn("Could not open browser, open the URL manually", "error", err)
		}
	}

	code, err := srv.wait(ctx, timeout)
	if err != nil {
		return nil, err
	}

	tok, err := c.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// ConsoleFlow authorizes without a local listener. It prints the consent URL
// and reads back either the code or the whole redirect URL.
type ConsoleFlow struct {
	In  io.Reader
	Out io.Writer
}

// Authorize implements CredentialProvider.
func (f *ConsoleFlow) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	c := *conf
	c.RedirectURL = consoleRedirectURL

	verifier := oauth2.GenerateVerifier()
	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(f.Out, "Open the following URL in a browser and approve access:\n\n%s\n\n", authURL)
	fmt.Fprint(f.Out, "The browser ends on a page that fails to load. Paste its full address (or just the code): ")

	line, err := readLine(ctx, f.In)
	if err != nil {
		return nil, err
	}

	code, err := parseAuthCode(line, state)
	if err != nil {
		return nil, err
	}

	tok, err := c.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func readLine(ctx context.Context, r io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		if scanner.Scan() {
			ch <- result{line: scanner.Text()}
			return
		}
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		ch <- result{err: fmt.Errorf("failed to read authorization code: %w", err)}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseAuthCode accepts a bare code or a redirect URL carrying one.
func parseAuthCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("no authorization code entered")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if got := q.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("state mismatch in redirect URL")
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL contains no authorization code")
	}
	return code, nil
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// callbackServer receives a single OAuth redirect on the loopback interface.
type callbackServer struct {
	mu            sync.Mutex
	port          int
	expectedState string
	codeChan      chan string
	errChan       chan error
	server        *http.Server
}

func newCallbackServer(port int, expectedState string) *callbackServer {
	return &callbackServer{
		port:          port,
		expectedState: expectedState,
		codeChan:      make(chan string, 1),
		errChan:       make(chan error, 1),
	}
}

func (s *callbackServer) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.fail(err)
		}
	}()
	return nil
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if e := q.Get("error"); e != "" {
		s.fail(fmt.Errorf("authorization denied: %s %s", e, q.Get("error_description")))
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "Authorization failed. You can close this window.")
		return
	}
	if q.Get("state") != s.expectedState {
		s.fail(fmt.Errorf("state mismatch in authorization callback"))
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "Authorization failed: invalid state parameter.")
		return
	}
	code := q.Get("code")
	if code == "" {
		s.fail(fmt.Errorf("no authorization code received"))
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "Authorization failed: no code received.")
		return
	}

	select {
	case s.codeChan <- code:
	default:
	}
	fmt.Fprintln(w, "The authentication flow has completed. You may close this window.")
}

func (s *callbackServer) fail(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

func (s *callbackServer) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-timer.C:
		return "", fmt.Errorf("timeout waiting for authorization callback")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *callbackServer) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *callbackServer) redirectURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/", s.port)
}

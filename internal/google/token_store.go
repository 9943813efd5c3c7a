package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// expiryLayout is the timestamp layout written to the token file. It is
// readable by the Python google-auth library as well.
const expiryLayout = "2006-01-02T15:04:05Z"

// authorizedUser is the on-disk "authorized user" credential format.
type authorizedUser struct {
	Token          string   `json:"token"`
	RefreshToken   string   `json:"refresh_token,omitempty"`
	TokenURI       string   `json:"token_uri"`
	ClientID       string   `json:"client_id"`
	ClientSecret   string   `json:"client_secret"`
	Scopes         []string `json:"scopes,omitempty"`
	UniverseDomain string   `json:"universe_domain,omitempty"`
	Account        string   `json:"account,omitempty"`
	Expiry         string   `json:"expiry,omitempty"`
}

// FileTokenStore persists a single OAuth token as an authorized user JSON file.
type FileTokenStore struct {
	path string
	conf *oauth2.Config
}

// NewFileTokenStore creates a store for the token file at path. The OAuth
// config supplies the client and endpoint fields written next to the token.
func NewFileTokenStore(path string, conf *oauth2.Config) *FileTokenStore {
	return &FileTokenStore{path: path, conf: conf}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token file. It returns ErrNoToken when the file does not exist.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}

	var au authorizedUser
	if err := json.Unmarshal(data, &au); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if au.Token == "" && au.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s contains neither an access nor a refresh token", s.path)
	}

	tok := &oauth2.Token{
		AccessToken:  au.Token,
		TokenType:    "Bearer",
		RefreshToken: au.RefreshToken,
	}
	if au.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339Nano, au.Expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry in token file %s: %w", s.path, err)
		}
		tok.Expiry = expiry
	}
	return tok, nil
}

// Save writes tok to the token file with owner-only permissions. The file is
// replaced atomically so a crash never leaves a truncated token behind.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("cannot save nil token")
	}

	au := authorizedUser{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if s.conf != nil {
		au.TokenURI = s.conf.Endpoint.TokenURL
		au.ClientID = s.conf.ClientID
		au.ClientSecret = s.conf.ClientSecret
		au.Scopes = s.conf.Scopes
	}
	if !tok.Expiry.IsZero() {
		au.Expiry = tok.Expiry.UTC().Format(expiryLayout)
	}

	data, err := json.MarshalIndent(au, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

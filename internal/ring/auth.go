package ring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// ChallengeFunc is invoked when the account demands a second factor during
// a password grant. It returns the verification code. A non-interactive
// deployment should return an error so authentication fails fast instead
// of blocking.
type ChallengeFunc func(prompt string) (string, error)

// NoChallenge is the ChallengeFunc for non-interactive deployments.
func NoChallenge(string) (string, error) {
	return "", ErrChallengeRequired
}

// TokenStoreOpts configures a TokenStore.
type TokenStoreOpts struct {
	Path      string // token cache file
	Username  string
	Password  string
	Challenge ChallengeFunc
	AuthURL   string           // defaults to DefaultAuthURL
	Now       func() time.Time // defaults to time.Now
}

// TokenStore owns the cached session credential: one file on disk,
// replaced atomically on every acquisition or refresh.
type TokenStore struct {
	path      string
	username  string
	password  string
	challenge ChallengeFunc
	authURL   string
	now       func() time.Time

	http *resty.Client

	mu     sync.Mutex
	cached *models.Token
	loaded bool
}

func NewTokenStore(opts TokenStoreOpts) *TokenStore {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Challenge == nil {
		opts.Challenge = NoChallenge
	}

	r := resty.New()
	r.SetHeader("User-Agent", userAgent)
	r.SetTimeout(30 * time.Second)

	return &TokenStore{
		path:      opts.Path,
		username:  opts.Username,
		password:  opts.Password,
		challenge: opts.Challenge,
		authURL:   opts.AuthURL,
		now:       opts.Now,
		http:      r,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Acquire returns a usable token, preferring the cache, then a refresh
// grant, then a full password grant (which may trigger the 2FA challenge).
func (s *TokenStore) Acquire(ctx context.Context) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loaded = true
		if tok, err := s.load(); err == nil {
			s.cached = tok
		}
	}

	if s.cached.Valid(s.now()) {
		return s.cached, nil
	}

	if s.cached != nil && s.cached.RefreshToken != "" {
		tok, err := s.refreshGrant(ctx, s.cached.RefreshToken)
		if err == nil {
			return s.install(tok)
		}
		if errors.Is(err, ErrTransientAuth) {
			return nil, err
		}
		// Refresh token rejected outright; fall through to a fresh login.
	}

	tok, err := s.passwordGrant(ctx)
	if err != nil {
		return nil, err
	}
	return s.install(tok)
}

// Invalidate forces re-authentication on the next Acquire. The refresh
// token is kept so renewal can still avoid a full login.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		s.cached.ExpiresAt = time.Time{}
	}
}

// install persists the token and updates the cache. Called with s.mu held.
func (s *TokenStore) install(tok *models.Token) (*models.Token, error) {
	if err := s.persist(tok); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}
	s.cached = tok
	return tok, nil
}

func (s *TokenStore) refreshGrant(ctx context.Context, refreshToken string) (*models.Token, error) {
	return s.grant(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}, "")
}

func (s *TokenStore) passwordGrant(ctx context.Context) (*models.Token, error) {
	form := map[string]string{
		"grant_type": "password",
		"client_id":  "ring_official_android",
		"scope":      "client",
		"username":   s.username,
		"password":   s.password,
	}

	tok, err := s.grant(ctx, form, "")
	if !errors.Is(err, errChallengeDemanded) {
		return tok, err
	}

	// The account wants a verification code.
	code, cerr := s.challenge("Enter 2FA code")
	if cerr != nil {
		return nil, fmt.Errorf("two-factor challenge: %w", cerr)
	}
	return s.grant(ctx, form, code)
}

// errChallengeDemanded is internal: the server asked for a 2FA code on
// this grant attempt.
var errChallengeDemanded = errors.New("2fa code demanded")

func (s *TokenStore) grant(ctx context.Context, form map[string]string, twoFACode string) (*models.Token, error) {
	req := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&tokenResponse{})
	if twoFACode != "" {
		req.SetHeader("2fa-support", "true")
		req.SetHeader("2fa-code", twoFACode)
	}

	resp, err := req.Post(s.authURL)
	if err != nil {
		return nil, fmt.Errorf("token request: %w: %v", ErrTransientAuth, err)
	}

	switch {
	case resp.StatusCode() == http.StatusPreconditionFailed:
		// Ring answers 412 when the account requires a second factor.
		return nil, errChallengeDemanded
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, resp.String())
	case resp.StatusCode() >= http.StatusInternalServerError:
		return nil, fmt.Errorf("token request: %w: status %s", ErrTransientAuth, resp.Status())
	case resp.IsError():
		return nil, fmt.Errorf("%w: unexpected status %s: %s", ErrAuthFailed, resp.Status(), resp.String())
	}

	tr, ok := resp.Result().(*tokenResponse)
	if !ok || tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty token response", ErrAuthFailed)
	}

	return &models.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    s.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func (s *TokenStore) load() (*models.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var tok models.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token cache: %w", err)
	}
	return &tok, nil
}

// persist writes the token with write-to-temp-then-rename so the cache
// file is never left half-written.
func (s *TokenStore) persist(tok *models.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ring_token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

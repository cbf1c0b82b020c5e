package ring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func newStore(t *testing.T, authURL string, challenge ChallengeFunc) *TokenStore {
	t.Helper()
	return NewTokenStore(TokenStoreOpts{
		Path:      filepath.Join(t.TempDir(), "token.cache"),
		Username:  "user@example.com",
		Password:  "hunter2",
		Challenge: challenge,
		AuthURL:   authURL,
		Now:       fixedNow,
	})
}

func grantResponse(w http.ResponseWriter, access string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": "refresh-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func TestAcquirePasswordGrant(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostFormValue("grant_type"))
		assert.Equal(t, "user@example.com", r.PostFormValue("username"))
		grantResponse(w, "access-1")
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)

	tok, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, fixedNow().Add(time.Hour), tok.ExpiresAt)

	// Cached now; no second round trip.
	_, err = s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAcquirePersistsAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grantResponse(w, "access-1")
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	_, err := s.Acquire(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)

	var tok models.Token
	require.NoError(t, json.Unmarshal(data, &tok))
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)

	// Only the cache file itself in the directory; no temp leftovers.
	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(s.path), entries[0].Name())
}

func TestAcquireReusesCacheFromDisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected with a fresh cached token")
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	cached := models.Token{
		AccessToken: "cached", RefreshToken: "r", TokenType: "Bearer",
		ExpiresAt: fixedNow().Add(time.Hour),
	}
	data, _ := json.Marshal(cached)
	require.NoError(t, os.WriteFile(s.path, data, 0o600))

	tok, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
}

func TestAcquireRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, "refresh-old", r.PostFormValue("refresh_token"))
		grantResponse(w, "access-new")
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	stale := models.Token{
		AccessToken: "stale", RefreshToken: "refresh-old",
		ExpiresAt: fixedNow().Add(-time.Hour),
	}
	data, _ := json.Marshal(stale)
	require.NoError(t, os.WriteFile(s.path, data, 0o600))

	tok, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", tok.AccessToken)
}

func TestAcquireTwoFactorFlow(t *testing.T) {
	var sawCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := r.Header.Get("2fa-code"); code != "" {
			sawCode = code
			grantResponse(w, "access-2fa")
			return
		}
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	challenged := false
	s := newStore(t, srv.URL, func(prompt string) (string, error) {
		challenged = true
		return "123456", nil
	})

	tok, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, challenged)
	assert.Equal(t, "123456", sawCode)
	assert.Equal(t, "access-2fa", tok.AccessToken)
}

func TestAcquireNonInteractiveChallengeFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, NoChallenge)

	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrChallengeRequired)
	assert.True(t, IsFatalAuth(err))
}

func TestAcquireBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)

	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.True(t, IsFatalAuth(err))
}

func TestAcquireServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)

	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTransientAuth)
	assert.False(t, IsFatalAuth(err))
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var grants int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grants++
		grantResponse(w, "access-1")
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)

	_, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, grants)

	s.Invalidate()

	_, err = s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, grants)
}

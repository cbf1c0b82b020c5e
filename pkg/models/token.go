package models

import "time"

// Token is the cached OAuth session credential. Exactly one copy lives on
// disk at a time; the token store replaces it atomically on refresh.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token is still usable, with a small
// skew margin so we refresh before the server-side expiry.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(30 * time.Second).Before(t.ExpiresAt)
}

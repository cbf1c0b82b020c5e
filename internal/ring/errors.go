package ring

import "errors"

// Error taxonomy for the remote account boundary. The engine only ever
// branches on these sentinels; everything else is detail carried by the
// wrapping message.
var (
	// ErrAuthFailed means the account rejected our credentials. There is no
	// point retrying without new ones, so this is fatal to the process.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrChallengeRequired means the account demanded a second factor and no
	// interactive challenge callback was available. Fatal, like ErrAuthFailed.
	ErrChallengeRequired = errors.New("two-factor challenge required")

	// ErrTransientAuth is a network or server-side failure during token
	// acquisition or refresh. Retryable.
	ErrTransientAuth = errors.New("transient authentication error")

	// ErrUnauthorized means an API call was rejected with a stale session.
	// The caller should invalidate the cached token and retry later.
	ErrUnauthorized = errors.New("session rejected")

	// ErrTransient is a network or 5xx failure on a regular API call.
	ErrTransient = errors.New("transient network error")

	// ErrNotReady means the recording for an event is still being processed
	// server-side. Retry after a delay.
	ErrNotReady = errors.New("recording not ready")

	// ErrMediaUnavailable means the event will never produce a recording.
	// This is a normal outcome, not a failure.
	ErrMediaUnavailable = errors.New("no media for event")
)

// IsFatalAuth reports whether err means authentication cannot succeed
// without operator intervention.
func IsFatalAuth(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrChallengeRequired)
}

package ring

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultAPIBase is the Ring consumer client API root.
	DefaultAPIBase = "https://api.ring.com/clients_api"

	// DefaultAuthURL is the OAuth token endpoint.
	DefaultAuthURL = "https://oauth.ring.com/oauth/token"

	apiVersion = "11"
	userAgent  = "ring-sms-notif/1.0"
)

// Client talks to the Ring account API. One instance per process; the
// poll loop drives it sequentially.
type Client struct {
	HTTP *resty.Client
}

func New(baseURL string) *Client {
	r := resty.New()
	r.SetBaseURL(baseURL)
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", userAgent)
	r.SetQueryParam("api_version", apiVersion)
	r.SetTimeout(60 * time.Second)

	return &Client{HTTP: r}
}

// UseAuth injects a bearer token from the store into every request. Token
// acquisition errors surface from the request itself, with the store's
// sentinel errors intact.
func (c *Client) UseAuth(store *TokenStore) {
	c.HTTP.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		tok, err := store.Acquire(req.Context())
		if err != nil {
			return err
		}
		req.SetAuthToken(tok.AccessToken)
		return nil
	})
}

// classify maps a resty outcome onto the error taxonomy. A nil return
// means the response is usable.
func classify(resp *resty.Response, err error, op string) error {
	if err != nil {
		// Auth errors from the token middleware pass through untouched so
		// the engine can tell fatal from transient.
		if IsFatalAuth(err) || errors.Is(err, ErrTransientAuth) || errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%s: %w: status %s", op, ErrTransient, resp.Status())
	case resp.IsError():
		return fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status(), resp.String())
	}
	return nil
}

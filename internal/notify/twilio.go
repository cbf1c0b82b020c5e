package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio delivers alerts as SMS. Attachments are dropped: plain SMS
// carries text only.
type Twilio struct {
	http       *resty.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	to         string
}

func NewTwilio(accountSID, authToken, from, to string) *Twilio {
	r := resty.New()
	r.SetTimeout(30 * time.Second)
	return &Twilio{
		http:       r,
		baseURL:    twilioBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
	}
}

func (t *Twilio) Name() string { return "sms" }

func (t *Twilio) Send(ctx context.Context, msg Message) error {
	body := msg.Title
	if msg.Body != "" {
		body += "\n" + msg.Body
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetBasicAuth(t.accountSID, t.authToken).
		SetFormData(map[string]string{
			"Body": body,
			"From": t.from,
			"To":   t.to,
		}).
		Post(fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID))

	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("twilio: status %s: %s", resp.Status(), resp.String())
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover delivers push notifications with optional image attachments.
type Pushover struct {
	http     *resty.Client
	url      string
	userKey  string
	apiToken string
}

func NewPushover(userKey, apiToken string) *Pushover {
	r := resty.New()
	r.SetTimeout(30 * time.Second)
	return &Pushover{
		http:     r,
		url:      pushoverURL,
		userKey:  userKey,
		apiToken: apiToken,
	}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Send(ctx context.Context, msg Message) error {
	req := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":    p.apiToken,
			"user":     p.userKey,
			"title":    msg.Title,
			"message":  msg.Body,
			"priority": strconv.Itoa(msg.Priority),
			"sound":    "pushover",
		})

	if msg.AttachmentPath != "" {
		if _, err := os.Stat(msg.AttachmentPath); err == nil {
			req.SetFile("attachment", msg.AttachmentPath)
		}
	}

	resp, err := req.Post(p.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("pushover: status %s: %s", resp.Status(), resp.String())
	}
	return nil
}

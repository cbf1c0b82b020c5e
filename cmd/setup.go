package cmd

import (
	"fmt"
	"os"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
)

// setupClient builds an authenticated API client from the loaded config.
// Used by the one-shot commands; the watch daemon does its own wiring.
func setupClient(challenge ring.ChallengeFunc) (*ring.Client, *config.Config) {
	cfg := config.Load()

	if cfg.Username == "" || cfg.Password == "" {
		fmt.Println("Error: RING_USERNAME and RING_PASSWORD must be set (environment or config file).")
		os.Exit(1)
	}

	tokens := ring.NewTokenStore(ring.TokenStoreOpts{
		Path:      cfg.TokenFile,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Challenge: challenge,
	})

	api := ring.New(ring.DefaultAPIBase)
	api.UseAuth(tokens)

	return api, cfg
}

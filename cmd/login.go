package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Ring and cache the session token",
	Long: `Authenticates against the Ring account using RING_USERNAME and
RING_PASSWORD, prompting for a two-factor code if the account requires
one, and caches the session token locally so the monitor can run
non-interactively.

Example:
  RING_USERNAME=me@example.com RING_PASSWORD=secret ring-monitor login`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if cfg.Username == "" || cfg.Password == "" {
			fmt.Println("Error: RING_USERNAME and RING_PASSWORD must be set.")
			os.Exit(1)
		}

		tokens := ring.NewTokenStore(ring.TokenStoreOpts{
			Path:      cfg.TokenFile,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Challenge: promptChallenge,
		})

		fmt.Printf("Authenticating as '%s'...\n", cfg.Username)

		if _, err := tokens.Acquire(cmd.Context()); err != nil {
			log.Fatalf("Fatal: Login failed: %v", err)
		}

		fmt.Printf("Login successful. Token cached at %s.\n", cfg.TokenFile)
		fmt.Println("You can now run 'ring-monitor watch'.")
	},
}

// promptChallenge reads a 2FA verification code from stdin.
func promptChallenge(prompt string) (string, error) {
	fmt.Println("\nRing requires two-factor authentication.")
	fmt.Println("Check your Ring app or email for a verification code.")
	fmt.Printf("\n%s: ", prompt)

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

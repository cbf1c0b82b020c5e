package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var eventSince string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent account events",
	Long:  `Lists recent events (doorbell presses, motion) across all devices on the account.`,
	Run: func(cmd *cobra.Command, args []string) {
		api, _ := setupClient(promptChallenge)

		duration, err := time.ParseDuration(eventSince)
		if err != nil {
			fmt.Printf("Error parsing duration: %v\n", err)
			os.Exit(1)
		}
		since := time.Now().UTC().Add(-duration)

		events, err := api.ListEvents(cmd.Context(), since)
		if err != nil {
			fmt.Printf("Error listing events: %v\n", err)
			os.Exit(1)
		}

		// --- JSON OUTPUT ---
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(events); err != nil {
				fmt.Printf("Error encoding JSON: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if len(events) == 0 {
			fmt.Println("No events found in this time range.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tKIND\tDEVICE\tEVENT ID")
		fmt.Fprintln(w, "---------\t----\t------\t--------")

		for _, e := range events {
			ts := e.CreatedAt.Local().Format("2006-01-02 15:04:05")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ts, e.RawKind, e.DeviceName, e.ID)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventSince, "since", "1h", "Look back duration (e.g. 30m, 1h, 24h)")
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List doorbells and cameras on the account",
	Run: func(cmd *cobra.Command, args []string) {
		api, _ := setupClient(promptChallenge)

		devices, err := api.Devices(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing devices: %v\n", err)
			os.Exit(1)
		}

		// --- JSON OUTPUT ---
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(devices); err != nil {
				fmt.Printf("Error encoding JSON: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if len(devices) == 0 {
			fmt.Println("No devices found on this account.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tBATTERY\tFIRMWARE")
		fmt.Fprintln(w, "--\t----\t----\t-------\t--------")

		for _, d := range devices {
			kind := "camera"
			if d.Doorbell {
				kind = "doorbell"
			}
			battery := d.BatteryLife
			if battery == "" {
				battery = "wired"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Description, kind, battery, d.Firmware)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

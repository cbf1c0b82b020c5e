package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
)

var cfgFile string
var jsonOutput bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ring-monitor",
	Short: "Monitor a Ring account for activity events",
	Long: `Watches a Ring doorbell/camera account for new events, sends alerts
through a configurable channel, and keeps recent video clips on disk
under a storage quota.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { config.InitConfig(cfgFile) })

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ring-monitor.yaml)")

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
	"github.com/KhalidMas23/ring-sms-notif/internal/logging"
	"github.com/KhalidMas23/ring-sms-notif/internal/viewer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only web viewer over the stored clips",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		log := logging.New(cfg.LogFormat)
		defer log.Sync()

		port := cfg.ViewerPort
		if servePort != 0 {
			port = servePort
		}

		if _, err := os.Stat(cfg.VideosDir); err != nil {
			fmt.Printf("Error: videos directory %s does not exist.\n", cfg.VideosDir)
			os.Exit(1)
		}

		srv := viewer.New(cfg.VideosDir, log.Named("viewer"))
		if err := srv.Start(port); err != nil {
			fmt.Printf("Viewer error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from VIEWER_PORT)")
}

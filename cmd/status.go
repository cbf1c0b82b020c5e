package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show token and storage status",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// Token status, read directly so we never trigger a login here.
		tokenState := "absent"
		if data, err := os.ReadFile(cfg.TokenFile); err == nil {
			var tok models.Token
			if json.Unmarshal(data, &tok) == nil {
				if tok.Valid(time.Now()) {
					tokenState = fmt.Sprintf("valid until %s", tok.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
				} else {
					tokenState = "expired (will refresh on next run)"
				}
			} else {
				tokenState = "corrupt"
			}
		}
		fmt.Printf("Token cache (%s): %s\n", cfg.TokenFile, tokenState)

		// Storage status.
		if !cfg.DownloadVideos {
			fmt.Println("Video downloads: disabled")
			return
		}

		var usage int64
		var files int
		entries, err := os.ReadDir(cfg.VideosDir)
		if err != nil {
			fmt.Printf("Videos directory (%s): not found\n", cfg.VideosDir)
			return
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if info, err := e.Info(); err == nil {
				usage += info.Size()
				files++
			}
		}

		fmt.Printf("Videos directory: %s\n", cfg.VideosDir)
		fmt.Printf("Files: %d | Storage: %.2f GB / %.2f GB\n",
			files, float64(usage)/float64(1<<30), cfg.MaxStorageGB)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

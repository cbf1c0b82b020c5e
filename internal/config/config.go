package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full startup configuration. Everything is read once; there
// is no hot-reload.
type Config struct {
	// Ring account
	Username  string
	Password  string
	TokenFile string

	// Notification channel
	Channel          string // pushover | sms | console
	PushoverUserKey  string
	PushoverAPIToken string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioTo         string

	// Monitoring / retention
	DownloadVideos bool
	VideosDir      string
	MaxStorageGB   float64
	PollInterval   time.Duration
	SettleDelay    time.Duration
	MaxAttempts    int
	LedgerDB       string

	// Ambient
	LogFormat   string
	MetricsPort int
	ViewerPort  int
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".ring-monitor" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ring-monitor")
	}

	viper.AutomaticEnv() // read in environment variables that match

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		// Config loaded successfully
	}
}

func setDefaults() {
	viper.SetDefault("RING_TOKEN_FILE", "ring_token.cache")
	viper.SetDefault("NOTIFY_CHANNEL", "console")
	viper.SetDefault("DOWNLOAD_VIDEOS", true)
	viper.SetDefault("VIDEOS_DIR", "./ring_videos")
	viper.SetDefault("MAX_STORAGE_GB", 10.0)
	viper.SetDefault("POLL_INTERVAL", 10)
	viper.SetDefault("SETTLE_DELAY", 5)
	viper.SetDefault("MAX_FETCH_ATTEMPTS", 3)
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("VIEWER_PORT", 8787)
}

// Load materializes the typed config from viper's current state.
func Load() *Config {
	return &Config{
		Username:  viper.GetString("RING_USERNAME"),
		Password:  viper.GetString("RING_PASSWORD"),
		TokenFile: viper.GetString("RING_TOKEN_FILE"),

		Channel:          viper.GetString("NOTIFY_CHANNEL"),
		PushoverUserKey:  viper.GetString("PUSHOVER_USER_KEY"),
		PushoverAPIToken: viper.GetString("PUSHOVER_API_TOKEN"),
		TwilioAccountSID: viper.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  viper.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       viper.GetString("TWILIO_FROM_NUMBER"),
		TwilioTo:         viper.GetString("TWILIO_TO_NUMBER"),

		DownloadVideos: viper.GetBool("DOWNLOAD_VIDEOS"),
		VideosDir:      viper.GetString("VIDEOS_DIR"),
		MaxStorageGB:   viper.GetFloat64("MAX_STORAGE_GB"),
		PollInterval:   time.Duration(viper.GetInt("POLL_INTERVAL")) * time.Second,
		SettleDelay:    time.Duration(viper.GetInt("SETTLE_DELAY")) * time.Second,
		MaxAttempts:    viper.GetInt("MAX_FETCH_ATTEMPTS"),
		LedgerDB:       viper.GetString("LEDGER_DB"),

		LogFormat:   viper.GetString("LOG_FORMAT"),
		MetricsPort: viper.GetInt("METRICS_PORT"),
		ViewerPort:  viper.GetInt("VIEWER_PORT"),
	}
}

// MaxBytes converts the storage quota to bytes. Zero disables the quota.
func (c *Config) MaxBytes() int64 {
	return int64(c.MaxStorageGB * float64(1<<30))
}

// Validate checks the fields the monitor cannot run without.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("RING_USERNAME and RING_PASSWORD are required")
	}
	switch c.Channel {
	case "pushover":
		if c.PushoverUserKey == "" || c.PushoverAPIToken == "" {
			return fmt.Errorf("PUSHOVER_USER_KEY and PUSHOVER_API_TOKEN are required for the pushover channel")
		}
	case "sms":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFrom == "" || c.TwilioTo == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and TWILIO_TO_NUMBER are required for the sms channel")
		}
	case "console":
		// nothing to check
	default:
		return fmt.Errorf("unknown NOTIFY_CHANNEL %q (want pushover, sms or console)", c.Channel)
	}
	return nil
}

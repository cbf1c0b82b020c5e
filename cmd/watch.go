package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/internal/config"
	"github.com/KhalidMas23/ring-sms-notif/internal/logging"
	"github.com/KhalidMas23/ring-sms-notif/internal/monitor"
	"github.com/KhalidMas23/ring-sms-notif/internal/notify"
	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
	"github.com/KhalidMas23/ring-sms-notif/internal/storage"
)

var serviceAction string

// --- SERVICE WRAPPER ---

// program implements the kardianos/service interface
type program struct {
	cfg    *config.Config
	logger *zap.Logger

	cancel     context.CancelFunc
	done       chan struct{}
	metricsSrv *http.Server
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *program) run(ctx context.Context) {
	defer close(p.done)

	engine, store, cleanup, err := buildMonitor(p.cfg, p.logger)
	if err != nil {
		p.logger.Error("monitor setup failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	if p.cfg.MetricsPort > 0 {
		registry := prometheus.NewRegistry()
		registry.MustRegister(&monitorCollector{engine: engine, store: store})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		p.metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", p.cfg.MetricsPort),
			Handler: mux,
		}
		go func() {
			p.logger.Info("metrics listening", zap.Int("port", p.cfg.MetricsPort))
			if err := p.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				p.logger.Warn("metrics server error", zap.Error(err))
			}
		}()
	}

	// Blocking. Only a fatal authentication failure returns an error; we
	// exit non-zero so the service manager restarts us once the operator
	// has fixed the credentials.
	if err := engine.Run(ctx); err != nil {
		p.logger.Error("monitor exited", zap.Error(err))
		os.Exit(1)
	}
}

func (p *program) Stop(s service.Service) error {
	// Stop should not block for long. Signal the loop and wait for the
	// in-flight tick to finish.
	if p.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.metricsSrv.Shutdown(ctx); err != nil {
			p.logger.Warn("metrics server forced to shutdown", zap.Error(err))
		}
	}
	p.cancel()
	<-p.done
	return nil
}

// --- WIRING ---

func buildMonitor(cfg *config.Config, logger *zap.Logger) (*monitor.Engine, *storage.Manager, func(), error) {
	api := ring.New(ring.DefaultAPIBase)
	tokens := ring.NewTokenStore(ring.TokenStoreOpts{
		Path:     cfg.TokenFile,
		Username: cfg.Username,
		Password: cfg.Password,
		// The daemon is non-interactive: a 2FA demand here is fatal and the
		// operator must run 'ring-monitor login' first.
		Challenge: ring.NoChallenge,
	})
	api.UseAuth(tokens)

	var ledger monitor.Ledger
	if cfg.LedgerDB != "" {
		l, err := monitor.OpenSQLiteLedger(cfg.LedgerDB)
		if err != nil {
			return nil, nil, nil, err
		}
		ledger = l
	} else {
		ledger = monitor.NewMemoryLedger()
	}

	var store *storage.Manager
	var engineStore monitor.Store
	if cfg.DownloadVideos {
		m, err := storage.New(cfg.VideosDir, cfg.MaxBytes(), logger.Named("storage"))
		if err != nil {
			ledger.Close()
			return nil, nil, nil, err
		}
		store = m
		engineStore = m
	}

	clock := monitor.NewClock()
	retriever := monitor.NewRetriever(api, clock, cfg.SettleDelay, cfg.MaxAttempts, logger.Named("media"))
	dispatcher := notify.NewDispatcher(buildChannel(cfg, logger), logger.Named("notify"))

	engine := monitor.NewEngine(monitor.Options{
		Source:    api,
		Creds:     tokens,
		Ledger:    ledger,
		Fetcher:   retriever,
		Store:     engineStore,
		Notifier:  dispatcher,
		Clock:     clock,
		Log:       logger.Named("monitor"),
		Interval:  cfg.PollInterval,
		Downloads: cfg.DownloadVideos,
	})

	cleanup := func() { ledger.Close() }
	return engine, store, cleanup, nil
}

func buildChannel(cfg *config.Config, logger *zap.Logger) notify.Channel {
	switch cfg.Channel {
	case "pushover":
		return notify.NewPushover(cfg.PushoverUserKey, cfg.PushoverAPIToken)
	case "sms":
		return notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.TwilioTo)
	default:
		return notify.NewConsole(logger.Named("alert"))
	}
}

// --- COLLECTOR ---

var (
	stateDesc = prometheus.NewDesc(
		"ring_monitor_state", "Engine state (0=starting 1=authenticated 2=polling 3=sleeping 4=stopped).", nil, nil,
	)
	ticksDesc = prometheus.NewDesc(
		"ring_monitor_ticks_total", "Poll ticks executed.", nil, nil,
	)
	eventsDesc = prometheus.NewDesc(
		"ring_monitor_events_total", "New events processed.", nil, nil,
	)
	notifSentDesc = prometheus.NewDesc(
		"ring_monitor_notifications_sent_total", "Notifications delivered.", nil, nil,
	)
	notifFailedDesc = prometheus.NewDesc(
		"ring_monitor_notifications_failed_total", "Notification delivery failures.", nil, nil,
	)
	clipsDesc = prometheus.NewDesc(
		"ring_monitor_clips_saved_total", "Video clips admitted to storage.", nil, nil,
	)
	fetchFailedDesc = prometheus.NewDesc(
		"ring_monitor_fetch_failures_total", "Recording fetches that gave up.", nil, nil,
	)
	pollErrorsDesc = prometheus.NewDesc(
		"ring_monitor_poll_errors_total", "Failed poll passes.", nil, nil,
	)
	usageDesc = prometheus.NewDesc(
		"ring_monitor_storage_usage_bytes", "Bytes used under the storage root.", nil, nil,
	)
	filesDesc = prometheus.NewDesc(
		"ring_monitor_storage_files", "Files under the storage root.", nil, nil,
	)
	evictedDesc = prometheus.NewDesc(
		"ring_monitor_storage_evicted_bytes_total", "Bytes freed by quota eviction.", nil, nil,
	)
)

type monitorCollector struct {
	engine *monitor.Engine
	store  *storage.Manager // nil when downloads are disabled
}

func (c *monitorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
	ch <- ticksDesc
	ch <- eventsDesc
	ch <- notifSentDesc
	ch <- notifFailedDesc
	ch <- clipsDesc
	ch <- fetchFailedDesc
	ch <- pollErrorsDesc
	ch <- usageDesc
	ch <- filesDesc
	ch <- evictedDesc
}

func (c *monitorCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.Stats()

	ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(c.engine.State()))
	ch <- prometheus.MustNewConstMetric(ticksDesc, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.CounterValue, float64(stats.EventsSeen))
	ch <- prometheus.MustNewConstMetric(notifSentDesc, prometheus.CounterValue, float64(stats.NotificationsSent))
	ch <- prometheus.MustNewConstMetric(notifFailedDesc, prometheus.CounterValue, float64(stats.NotificationsFailed))
	ch <- prometheus.MustNewConstMetric(clipsDesc, prometheus.CounterValue, float64(stats.ClipsSaved))
	ch <- prometheus.MustNewConstMetric(fetchFailedDesc, prometheus.CounterValue, float64(stats.FetchFailures))
	ch <- prometheus.MustNewConstMetric(pollErrorsDesc, prometheus.CounterValue, float64(stats.PollErrors))

	if c.store != nil {
		ch <- prometheus.MustNewConstMetric(usageDesc, prometheus.GaugeValue, float64(c.store.Usage()))
		ch <- prometheus.MustNewConstMetric(filesDesc, prometheus.GaugeValue, float64(c.store.FileCount()))
		ch <- prometheus.MustNewConstMetric(evictedDesc, prometheus.CounterValue, float64(c.store.EvictedBytes()))
	}
}

// --- COMMAND ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the event monitor",
	Long: `Starts the long-running monitor: polls the account for new events,
sends an alert per event, and downloads clips under the storage quota.
Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger := logging.New(cfg.LogFormat)
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		svcConfig := &service.Config{
			Name:        "ring-monitor",
			DisplayName: "Ring Event Monitor",
			Description: "Watches a Ring account for activity, sends alerts, records clips",
			Arguments:   []string{"watch"},
		}

		prg := &program{cfg: cfg, logger: logger}

		s, err := service.New(prg, svcConfig)
		if err != nil {
			log.Fatal(err)
		}

		// Handle Service Control Actions (Install, Start, Stop, Uninstall)
		if serviceAction != "" {
			if err := service.Control(s, serviceAction); err != nil {
				log.Fatalf("Failed to %s service: %v", serviceAction, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return
		}

		// Run the Service (Blocking). This happens when the Service Manager
		// starts the binary, OR when run interactively.
		if err := s.Run(); err != nil {
			logger.Error("service run failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/api"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/availability"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/booking"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/config"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/db"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/events"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/google"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/handoff"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/metrics"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/notify"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/scheduleapi"
	"github.com/drbembem2005/taafi-clinic-portal-sub000/internal/slots"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Log.Pretty {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	err = config.WatchDirectory(ctx, cfg.DirectoryPath(), cfg.DirectoryReload(), &logger, func(dir *config.DirectoryConfig) error {
		return database.SyncDirectory(context.WithoutCancel(ctx), dir)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("load directory error")
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	var (
		source    availability.Source
		persister booking.Persister = database
	)
	switch cfg.ScheduleSource() {
	case "remote":
		client := scheduleapi.NewClient(cfg.Schedule.BaseURL, cfg.Schedule.APIKey, cfg.FetchTimeout())
		if rdb != nil && cfg.CacheTTL() > 0 {
			client.UseRedisCache(rdb, cfg.CacheTTL())
		}
		source, persister = client, client
	default:
		source = slots.NewLocalSource(database, cfg.Location(), cfg.WindowDays())
	}
	resolver := availability.NewResolver(source, availability.WithLocation(cfg.Location()))

	bus := events.NewEventBus(&logger)
	if cfg.Telegram.BotToken != "" {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier := notify.NewNotifier(sender, cfg.Telegram.StaffChatIDs, &logger)
			notifier.Subscribe(bus)
			if cfg.Telegram.DailyDigest {
				go notify.NewDigest(notifier, database, cfg.Location(), cfg.DigestHour()).Start(ctx)
			}
		}
	}
	if cfg.Sheets.Enabled {
		appender, err := google.NewSheetsAppender(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			google.NewSheetsService(appender, cfg.Sheets.SpreadsheetID, cfg.SheetsRange(), &logger).Subscribe(bus)
		}
	}

	coordinator := booking.NewCoordinator(persister, handoff.NewWhatsApp(cfg.WhatsApp.Phone, &logger), &logger,
		booking.WithPublisher(bus))

	sessions := booking.NewSessionStore(cfg.SessionTimeout(), func() *booking.Wizard {
		return booking.NewWizard(database, resolver, coordinator,
			booking.WithFetchTimeout(cfg.FetchTimeout()+5*time.Second),
			booking.WithWizardLogger(&logger))
	})
	go runSessionCleanup(ctx, sessions, &logger)

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, cfg.BackupPath(), cfg.BackupInterval(), cfg.Backup.RetentionDays, &logger)
		go backups.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	perMinute, burst := cfg.SubmitRate()
	server := api.NewHTTPServer(cfg.ServerAddress(), sessions, database, api.Options{
		SubmitPerMinute: perMinute,
		SubmitBurst:     burst,
	}, &logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info().Str("source", cfg.ScheduleSource()).Msg("clinic portal started")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown error")
	}
	bus.Wait()
	logger.Info().Msg("clinic portal stopped")
}

func runSessionCleanup(ctx context.Context, sessions *booking.SessionStore, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Int("active", sessions.Len()).Msg("expired sessions removed")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}

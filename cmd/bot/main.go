package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"massagebot/internal/api"
	"massagebot/internal/booking"
	"massagebot/internal/bot"
	"massagebot/internal/calendar"
	"massagebot/internal/clock"
	"massagebot/internal/config"
	"massagebot/internal/database"
	"massagebot/internal/events"
	"massagebot/internal/metrics"
	"massagebot/internal/notify"
	"massagebot/internal/reminder"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MASSAGEBOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.BotToken == "" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	clk := clock.NewSystem()
	if _, err := db.GenerateSlots(ctx, clk.Now(), cfg.HorizonDays(), cfg.OpenHour(), cfg.CloseHour(), cfg.SlotMinutes()); err != nil {
		logger.Fatal().Err(err).Msg("failed to generate slot horizon")
	}
	go maintainSlotHorizon(ctx, db, cfg, clk, &logger)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
			Enabled:       true,
			StoragePath:   cfg.Backup.Path,
			Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, rate limiting disabled")
			rdb = nil
		}
	}

	var cal calendar.Adapter = calendar.Noop{}
	if cfg.GoogleCalendar.Enabled {
		g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
			ServiceAccountKeyPath: cfg.GoogleCalendar.ServiceAccountKey,
			CalendarID:            cfg.GoogleCalendar.CalendarID,
			TimeZone:              cfg.GoogleCalendar.TimeZone,
		}, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init google calendar")
		}
		cal = g
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create telegram bot")
	}
	botAPI.Debug = cfg.Telegram.Debug
	logger.Info().Str("username", botAPI.Self.UserName).Msg("authorized on telegram")

	notifier := notify.NewTelegram(botAPI, &logger)
	bus := events.NewBus()
	subscribeAuditLog(bus, &logger)
	metrics.Register()

	allocator := booking.NewService(db, cal, notifier, bus, clk, &logger)

	reminderJob := reminder.NewJob(db, notifier, clk, cfg.ReminderInterval(), &logger)
	go reminderJob.Start(ctx)

	var limiter bot.RateLimiter
	if rdb != nil {
		limiter = bot.NewRedisRateLimiter(rdb, 5, 10*time.Second)
	}
	worker := bot.NewWorker(botAPI, db, allocator, limiter, clk, &logger)

	if cfg.API.Enabled {
		if cfg.API.Token == "" {
			logger.Fatal().Msg("set api.token in config when the api is enabled")
		}
		server := api.NewServer(db, allocator, cfg.API.Token, &logger)
		go func() {
			if err := server.Run(ctx, cfg.API.Listen); err != nil {
				logger.Error().Err(err).Msg("admin api error")
			}
		}()
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("massage booking bot started")
	worker.Run(ctx)
}

// subscribeAuditLog writes an audit line for every lifecycle event.
func subscribeAuditLog(bus *events.Bus, logger *zerolog.Logger) {
	log := func(e events.Event) {
		logger.Info().
			Str("event", e.Type).
			Int64("booking_id", e.BookingID).
			Int64("user_id", e.UserID).
			Str("detail", e.Detail).
			Msg("audit")
	}
	bus.Subscribe(events.BookingCreated, log)
	bus.Subscribe(events.BookingCancelled, log)
	bus.Subscribe(events.BookingUpdated, log)
}

// maintainSlotHorizon extends the bookable horizon once a day so there
// is always a full window of open slots.
func maintainSlotHorizon(ctx context.Context, db *database.DB, cfg *config.Config, clk clock.Clock, logger *zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := db.GenerateSlots(ctx, clk.Now(), cfg.HorizonDays(), cfg.OpenHour(), cfg.CloseHour(), cfg.SlotMinutes()); err != nil {
				logger.Error().Err(err).Msg("failed to extend slot horizon")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

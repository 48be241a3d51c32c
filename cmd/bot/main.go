package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topicvote/internal/access"
	"topicvote/internal/bot"
	"topicvote/internal/cache"
	"topicvote/internal/config"
	"topicvote/internal/database"
	"topicvote/internal/engine"
	"topicvote/internal/events"
	"topicvote/internal/export"
	"topicvote/internal/metrics"
	"topicvote/internal/model"
	"topicvote/internal/schedule"
	"topicvote/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	configPath := os.Getenv("TOPICVOTE_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = cache.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
	}

	bus := events.NewEventBus()

	var (
		backend store.Backend
		db      *database.DB
	)
	switch cfg.Storage.Driver {
	case "redis":
		backend = cache.NewStateBackend(rdb, cfg.Storage.Key)
	case "memory":
		logger.Warn().Msg("memory storage: state is lost on restart")
		backend = &store.MemoryBackend{}
	default:
		db, err = database.NewDB(cfg.Storage.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		defer db.Close()
		backend = database.NewStateBackend(db, cfg.Storage.Key)
		db.SubscribeAudit(bus)
	}

	layout := model.NewLayout(cfg.Event.Rooms, cfg.Event.Slots, cfg.Event.MaxVotes)
	repo := store.NewRepository(backend, layout, &logger)
	state, err := repo.LoadState(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load state")
	}

	tg, err := bot.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Fatal().Err(err).Msg("create telegram client error")
	}

	var names bot.NameCache
	if rdb != nil {
		names = cache.NewNameCache(rdb, "topicvote:name:", 24*time.Hour)
	}

	organizers := access.NewService(cfg.Organizers, logger)
	if err := config.WatchOrganizers(ctx, configPath, 30*time.Second, organizers.SetOrganizers); err != nil {
		logger.Error().Err(err).Msg("config watch failed")
	}

	eng := engine.New(state, repo, engine.Options{
		BotUsername: tg.SelfUser().UserName,
		Categories:  cfg.Event.Categories,
		Authorizer:  organizers,
		Directory:   bot.NewDirectory(tg, names),
		Exporter:    exportWorkbook,
		Publisher:   bus,
	}, &logger)

	b, err := bot.New(tg, eng, bot.Options{
		PollTimeout:       cfg.Telegram.Timeout,
		MessagesPerSecond: cfg.RateLimit.MessagesPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, repo, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.Subscribe(bus)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if db != nil && cfg.Backup.Enabled {
		backupLogger := logger.With().Str("component", "backup").Logger()
		go database.NewBackupService(db, cfg.Backup, &backupLogger).Start(ctx)
	}

	logger.Info().Str("storage", cfg.Storage.Driver).Msg("Topic vote bot started")
	b.Start(ctx)
}

func exportWorkbook(report schedule.Report, layout model.Layout) (*engine.Attachment, error) {
	data, err := export.Workbook(report, layout)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("topicvote_%s.xlsx", time.Now().Format("20060102_1504"))
	return &engine.Attachment{Name: name, Data: data}, nil
}

func startHealthServer(ctx context.Context, port int, repo *store.Repository, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := repo.Ping(ctxPing); err != nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
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
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/api"
	"github.com/Domenick1991/nikolaus/config"
	adminapi "github.com/Domenick1991/nikolaus/internal/api/admin_service_api"
	"github.com/Domenick1991/nikolaus/internal/bootstrap"
	"github.com/Domenick1991/nikolaus/internal/cache"
	"github.com/Domenick1991/nikolaus/internal/kafka"
	"github.com/Domenick1991/nikolaus/internal/repository"
	"github.com/Domenick1991/nikolaus/internal/richtext"
	"github.com/Domenick1991/nikolaus/internal/search"
	"github.com/Domenick1991/nikolaus/internal/service/booking"
	"github.com/Domenick1991/nikolaus/internal/service/settings"
	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
	"github.com/Domenick1991/nikolaus/internal/verification"
	"github.com/Domenick1991/nikolaus/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Booking.Location()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.Migrate(cfg.Database.URL(), cfg.Database.MigrationsDir, logger.WithComponent(log, "migrate")); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Booking.SettingsCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Booking.TimeSlotsCacheTTL)*time.Second,
	)
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger.WithComponent(log, "kafka"))
	defer producer.Close()

	var (
		searcher search.Searcher
		meili    *search.Meili
	)
	if cfg.Search.MeiliURL != "" {
		meili = search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliAPIKey, cfg.Search.Index, log)
		defer meili.Close()
		searcher = meili
	}
	searchService := search.NewService(searcher, loc, logger.WithComponent(log, "search"))

	signer, err := verification.NewSigner(cfg.Verification.Secret, time.Duration(cfg.Verification.TTLHours)*time.Hour, cfg.Verification.LinkBaseURL)
	if err != nil {
		log.Fatalf("verification signer: %v", err)
	}

	settingsService := settings.NewSettingsService(repository.NewSettingsRepository(pool), redisCache, logger.WithComponent(log, "settings"))
	timeSlotService := timeslots.NewTimeSlotService(
		repository.NewTimeSlotRepository(pool),
		settingsService,
		redisCache,
		searchService,
		loc,
		logger.WithComponent(log, "time_slots"),
	)
	if err := timeSlotService.Reindex(ctx); err != nil {
		log.WithError(err).Warn("initial time slot indexing failed")
	}
	if meili != nil {
		meili.OnRecover(func() {
			if err := timeSlotService.Reindex(ctx); err != nil {
				log.WithError(err).Warn("time slot reindex after recovery failed")
			}
		})
	}

	bookingService := booking.NewBookingService(
		repository.NewBookingRepository(pool),
		settingsService,
		timeSlotService,
		signer,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		loc,
		logger.WithComponent(log, "booking"),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithUnverifiedTTL(cfg.Booking.UnverifiedTTL()),
	)

	renderer, err := richtext.NewHTMLRenderer(nil)
	if err != nil {
		log.Fatalf("html renderer: %v", err)
	}

	handlers := bootstrap.Handlers{
		Config:    api.NewConfigHandler(settingsService, renderer),
		TimeSlots: api.NewTimeSlotHandler(timeSlotService),
		Bookings:  api.NewBookingHandler(bookingService, api.NewRateLimiter(cfg.HTTP.RateLimitPerMinute)),
	}
	checks := map[string]bootstrap.HealthCheck{
		"postgres": pool.Ping,
		"redis":    redisCache.Ping,
	}
	admin := adminapi.NewServer(timeSlotService, settingsService, bookingService)

	if err := bootstrap.Run(ctx, cfg, handlers, admin, checks, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

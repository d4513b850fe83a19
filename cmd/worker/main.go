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

	"github.com/Domenick1991/nikolaus/config"
	"github.com/Domenick1991/nikolaus/internal/cache"
	"github.com/Domenick1991/nikolaus/internal/email"
	"github.com/Domenick1991/nikolaus/internal/kafka"
	"github.com/Domenick1991/nikolaus/internal/repository"
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

	signer, err := verification.NewSigner(cfg.Verification.Secret, time.Duration(cfg.Verification.TTLHours)*time.Hour, cfg.Verification.LinkBaseURL)
	if err != nil {
		log.Fatalf("verification signer: %v", err)
	}

	settingsService := settings.NewSettingsService(repository.NewSettingsRepository(pool), redisCache, logger.WithComponent(log, "settings"))
	timeSlotService := timeslots.NewTimeSlotService(
		repository.NewTimeSlotRepository(pool),
		settingsService,
		redisCache,
		search.NewService(nil, loc, log),
		loc,
		logger.WithComponent(log, "time_slots"),
	)
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

	sender, err := email.NewSender(cfg.SMTP, logger.WithComponent(log, "email"))
	if err != nil {
		log.Fatalf("email sender: %v", err)
	}
	if !sender.IsConfigured() {
		log.Warn("smtp host not configured, mails will be dropped")
	}
	notifier := email.NewNotifier(settingsService, signer, sender, loc, logger.WithComponent(log, "notifier"))

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger.WithComponent(log, "kafka"))
	defer consumer.Close()

	go func() {
		if err := consumer.ConsumeEvents(ctx, notifier.Handle); err != nil {
			log.WithError(err).Warn("consumer stopped")
		}
	}()

	var sweep <-chan time.Time
	if cfg.Booking.UnverifiedTTL() > 0 {
		expireTicker := time.NewTicker(cfg.Worker.SweepInterval())
		defer expireTicker.Stop()
		sweep = expireTicker.C
	} else {
		log.Info("unverified booking expiry disabled")
	}

	log.Info("worker started")
	for {
		select {
		case <-sweep:
			expired, err := bookingService.ExpireUnverified(ctx)
			if err != nil {
				log.WithError(err).Error("expire unverified bookings")
				continue
			}
			if len(expired) > 0 {
				log.Infof("expired %d unverified bookings", len(expired))
			}
		case <-ctx.Done():
			log.Info("shutting down")
			return
		}
	}
}

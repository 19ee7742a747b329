package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velmostra/stagegate/config"
	"github.com/velmostra/stagegate/internal/bootstrap"
	"github.com/velmostra/stagegate/internal/cache"
	"github.com/velmostra/stagegate/internal/gateway"
	"github.com/velmostra/stagegate/internal/kafka"
	"github.com/velmostra/stagegate/internal/repository"
	"github.com/velmostra/stagegate/internal/service/discount"
	"github.com/velmostra/stagegate/internal/service/events"
	"github.com/velmostra/stagegate/internal/service/payments"
	"github.com/velmostra/stagegate/internal/service/reservation"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.EventsCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	eventRepo := repository.NewEventRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)

	eventService := events.NewEventService(eventRepo, redisCache)
	discountService := discount.NewDiscountService(discountRepo)
	reservationService := reservation.NewReservationService(
		reservationRepo,
		eventRepo,
		discountService,
		producer,
		cfg.Kafka.ReservationTopic,
		time.Duration(cfg.Booking.HoldTTLHours)*time.Hour,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)
	paymentService := payments.NewPaymentService(
		reservationRepo,
		reservationService,
		eventRepo,
		gateway.NewStripeGateway(cfg.Stripe),
		redisCache,
		time.Duration(cfg.Booking.CheckoutLockSeconds)*time.Second,
	)

	if err := bootstrap.Run(ctx, cfg, eventService, reservationService, discountService, paymentService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velmostra/stagegate/config"
	"github.com/velmostra/stagegate/internal/email"
	"github.com/velmostra/stagegate/internal/kafka"
	"github.com/velmostra/stagegate/internal/repository"
	"github.com/velmostra/stagegate/internal/service/discount"
	"github.com/velmostra/stagegate/internal/service/reservation"
	"github.com/velmostra/stagegate/internal/sweeper"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	eventRepo := repository.NewEventRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)

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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.TicketEvent) error {
			if event.Type != "reservation_paid" {
				return nil
			}
			// Best-effort; a failed send never touches payment state.
			return emailSender.Send(ctx, event)
		}); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweep := sweeper.New(reservationService, time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute)
	if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("sweeper error: %v", err)
	}
	log.Printf("shutting down")
}

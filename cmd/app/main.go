package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mzhav/roomreserve/config"
	"github.com/mzhav/roomreserve/internal/bootstrap"
	"github.com/mzhav/roomreserve/internal/cache"
	"github.com/mzhav/roomreserve/internal/kafka"
	"github.com/mzhav/roomreserve/internal/repository"
	"github.com/mzhav/roomreserve/internal/service/booking"
	"github.com/mzhav/roomreserve/internal/service/rooms"
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

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.RoomsCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	roomRepo := repository.NewRoomRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	roomService := rooms.NewRoomService(roomRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		roomRepo,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.PaymentWindowMinutes)*time.Minute,
		time.Duration(cfg.Booking.ClaimLockTTLSeconds)*time.Second,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	if err := bootstrap.Run(ctx, cfg, roomService, bookingService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

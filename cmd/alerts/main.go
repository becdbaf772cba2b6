package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"warehouse-service/internal/alerts"
	"warehouse-service/internal/config"
	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/orders"
	"warehouse-service/internal/postgres"
	"warehouse-service/internal/redisx"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName+"-alerts").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	svc := &alerts.Service{
		Stock:       &orders.ProductRepo{DB: db, Log: log},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-alerts",
		Threshold:   cfg.LowStockThreshold,
		Log:         log,
	}

	group := getenv("ALERTS_GROUP", "stock-alerts")
	workers := mustAtoi(getenv("ALERTS_WORKERS", "4"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPlaced, workers, log)

	go func() {
		log.Info().
			Str("group", group).
			Str("topic", orders.TopicOrderPlaced).
			Int("workers", workers).
			Msg("alerts consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"warehouse-service/internal/config"
	"warehouse-service/internal/httpx"
	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/postgres"
	"warehouse-service/internal/redisx"

	"warehouse-service/internal/orders"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	if err := postgres.Seed(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db seed")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	// Repos & handlers
	orderRepo := &orders.Repo{DB: db, Log: log}
	productRepo := &orders.ProductRepo{DB: db, Log: log}

	router := httpx.NewRouter(log)
	router.Group(func(r chi.Router) {
		r.Use(httpx.Auth(cfg.JWTSecret))
		oh := &httpx.OrdersHandler{
			Store:    orderRepo,
			Producer: prod,
			Redis:    rdb,
			Service:  cfg.ServiceName,
			Log:      log,
		}
		oh.Register(r)
		ph := &httpx.ProductsHandler{
			Store:    productRepo,
			Producer: prod,
			Service:  cfg.ServiceName,
			Log:      log,
		}
		ph.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox so the loop flushes and exits
	prod.WaitClosed()
	cancel()
}

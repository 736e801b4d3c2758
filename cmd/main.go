package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"storefront-service/internal/api"
	"storefront-service/internal/config"
	"storefront-service/internal/consumer"
	"storefront-service/internal/repository"
	"storefront-service/internal/repository/memory"
	"storefront-service/internal/scheduler"
	"storefront-service/internal/service"
	"storefront-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func connectDB(cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", cfg.DSN())
		if err == nil {
			err = db.Ping()
			if err == nil {
				logger.Info().Msgf("Connected to DB %s", cfg.DBName)
				return db, nil
			}
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to DB %s (%s:%s)", i+1, cfg.DBName, cfg.DBHost, cfg.DBPort)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", cfg.DBName, cfg.DBHost, cfg.DBPort, err)
}

type stores struct {
	tx        service.Transactor
	orders    service.OrderRepository
	lines     service.LineItemRepository
	items     service.ItemRepository
	customers service.CustomerRepository
	close     func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Storage == "memory" {
		m := memory.New()
		return &stores{
			tx:        m,
			orders:    m.Orders(),
			lines:     m.LineItems(),
			items:     m.Items(),
			customers: m.Customers(),
			close:     func() error { return nil },
		}, nil
	}

	db, err := connectDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.AutoMigrate(3, db); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		tx:        repository.NewTransactor(db),
		orders:    repository.NewOrderRepository(db),
		lines:     repository.NewLineItemRepository(db),
		items:     repository.NewItemRepository(db),
		customers: repository.NewCustomerRepository(db),
		close:     db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	var rdb *redis.Client
	var guard service.IdempotencyGuard
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		guard = service.NewRedisIdempotencyGuard(rdb, cfg.IdempotencyTTL)
	}

	catalogService := service.NewCatalogService(st.items, rdb, cfg.ItemCacheTTL)
	customerService := service.NewCustomerService(st.customers, []byte(cfg.JWTSecret), cfg.TokenTTL)

	var publisher service.EventPublisher
	if cfg.KafkaEnabled() {
		writer := cfg.NewKafkaWriter()
		defer writer.Close()
		publisher = service.NewKafkaPublisher(writer)

		reader := cfg.NewKafkaReader()
		defer reader.Close()
		go consumer.NewConsumer(reader, catalogService).Run(ctx)
	}

	// Orders are priced from the repository, never from the item cache.
	orderService := service.NewOrderService(st.tx, st.orders, st.lines, service.NewRepositoryLookup(st.items), catalogService, customerService, publisher, guard)

	delivery, err := scheduler.NewDeliveryScheduler(cfg.DeliverySchedule, orderService, cfg.DeliveryTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid delivery schedule")
	}
	delivery.Start()

	e := api.NewServer(
		api.NewOrderHandler(orderService),
		api.NewItemHandler(catalogService),
		api.NewCustomerHandler(customerService),
		api.Authenticate(customerService, []byte(cfg.JWTSecret)),
		api.RateLimit{Rate: cfg.RateLimit, Burst: cfg.RateBurst},
	)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server closed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down server")
	}
	delivery.Stop(shutdownCtx)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/guisedstore/storefront/internal/api"
	"github.com/guisedstore/storefront/internal/config"
	"github.com/guisedstore/storefront/internal/handler"
	"github.com/guisedstore/storefront/internal/infrastructure/kafka"
	"github.com/guisedstore/storefront/internal/infrastructure/redis"
	"github.com/guisedstore/storefront/internal/infrastructure/search"
	"github.com/guisedstore/storefront/internal/observability"
	core "github.com/guisedstore/storefront/internal/repository/postgres"
	service "github.com/guisedstore/storefront/internal/services"
	"github.com/guisedstore/storefront/internal/worker"
	_ "github.com/lib/pq"
)

const (
	settlementTopic = "order-settlement"
	indexSyncTopic  = "index-sync"
)

func main() {
	cfg := config.Load()

	shutdownTracing, metricsHandler := observability.Setup("storefront")
	defer shutdownTracing(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping Postgres: %v", err)
	}
	if err := runMigrations(db, cfg.MigrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	index, err := search.NewElasticIndex(cfg.ElasticAddrs)
	if err != nil {
		log.Fatalf("Failed to connect to Elasticsearch: %v", err)
	}

	settlementProducer := kafka.NewProducer(cfg.KafkaBrokers, settlementTopic)
	indexProducer := kafka.NewProducer(cfg.KafkaBrokers, indexSyncTopic)
	defer settlementProducer.Close()
	defer indexProducer.Close()

	userRepo := core.NewPostgresUserRepository(db)
	walletRepo := core.NewPostgresWalletRepository(db)
	cartRepo := core.NewPostgresCartRepository(db)
	orderRepo := core.NewPostgresOrderRepository(db)
	productRepo := core.NewPostgresProductRepository(db)
	txManager := core.NewSQLTxManager(db)

	authSvc := service.NewAuthService(txManager, userRepo, walletRepo, redisClient, cfg.JWTSecret)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	checkoutSvc := service.NewCheckoutService(txManager, cartRepo, orderRepo, walletRepo, settlementProducer)
	walletSvc := service.NewWalletService(txManager, walletRepo)
	productSvc := service.NewProductService(productRepo, indexProducer, redisClient, index)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	settlementReader := kafka.NewReader(cfg.KafkaBrokers, settlementTopic, "settlement-workers")
	defer settlementReader.Close()
	settlementWorker := worker.NewSettlementWorker(settlementReader, txManager, orderRepo, walletRepo)
	go settlementWorker.Run(workerCtx)

	indexReader := kafka.NewReader(cfg.KafkaBrokers, indexSyncTopic, "index-sync-workers")
	defer indexReader.Close()
	indexWorker := worker.NewIndexSyncWorker(indexReader, productRepo, index)
	go indexWorker.Run(workerCtx)

	// Rebuild the search index on boot so that messages lost while the
	// consumer was down do not leave stale documents behind.
	go func() {
		if err := indexWorker.Resync(workerCtx); err != nil {
			log.Printf("Initial index resync failed: %v", err)
		}
	}()

	h := handler.NewHandler(authSvc, cartSvc, checkoutSvc, walletSvc, productSvc)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret, metricsHandler)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	stopWorkers()
	log.Println("Server stopped")
}

func runMigrations(db *sql.DB, dir string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	api "github.com/wms-platform/che-controller/internal/api/http"
	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/coordinator"
	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/internal/engine"
	"github.com/wms-platform/che-controller/internal/facility"
	kafkaExport "github.com/wms-platform/che-controller/internal/infrastructure/kafka"
	"github.com/wms-platform/che-controller/internal/infrastructure/mongodb"
	"github.com/wms-platform/che-controller/internal/metrics"
	"github.com/wms-platform/che-controller/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(cfg.ServiceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting CHE controller", "facility", cfg.Facility.Name)

	ctx := context.Background()

	m := metrics.New(metrics.DefaultConfig(cfg.ServiceName))
	logger.Info("Metrics initialized")

	// Repositories: MongoDB when configured, in-memory otherwise. Both
	// satisfy the same engine interfaces.
	var (
		orderRepo     engine.OrderRepository
		inventoryRepo engine.InventoryRepository
		wiRepo        engine.WorkInstructionRepository
		orderImport   api.OrderImporter
		stockImport   api.StockImporter
	)
	if cfg.Mongo.Enabled {
		db, closeDB, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to MongoDB")
			os.Exit(1)
		}
		defer closeDB()
		logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

		orders := mongodb.NewOrderRepository(db)
		inventory := mongodb.NewInventoryRepository(db)
		orderRepo, inventoryRepo = orders, inventory
		orderImport, stockImport = orders, inventory
		wiRepo = mongodb.NewWorkInstructionRepository(db)
	} else {
		orders := engine.NewMemoryOrderRepository()
		inventory := engine.NewMemoryInventoryRepository()
		orderRepo, inventoryRepo = orders, inventory
		orderImport, stockImport = orders, inventory
		wiRepo = engine.NewMemoryWorkInstructionRepository()
		logger.Info("Using in-memory repositories")
	}

	// Export sink: Kafka when configured, discard otherwise.
	var exporter engine.ExportSink = engine.NopExportSink{}
	if cfg.Kafka.Enabled {
		kafkaExporter := kafkaExport.NewExporter(cfg.Kafka, logger, m)
		defer kafkaExporter.Close()
		exporter = kafkaExporter
		logger.Info("Kafka exporter initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.ExportTopic)
	}

	fac := facility.NewFacility(cfg.Facility.Name)
	props := config.ParseProperties(cfg.Facility.Properties)
	eng := engine.New(orderRepo, inventoryRepo, wiRepo, fac, props, exporter, m, logger)

	// Device transport sink: physical radio transports register here; until
	// then renders are retained for the API layer and tests.
	transport := device.NewRecordingSink()

	coord := coordinator.New(transport, logger)
	coord.SetFactory(func(cheName string) *device.Machine {
		machine := device.NewMachine(cheName, eng, fac, coord.Sink(), logger)
		machine.SetRemote(coord)
		m.SetActiveSessions(len(coord.Names()) + 1)
		return machine
	})
	eng.SetNotifier(coord)

	handlers := api.NewHandlers(coord, eng, fac, orderImport, stockImport, m, logger)

	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestMetrics(m))
	api.SetupRoutes(router, handlers, m)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server stopped")
}

// cmd/api/main.go

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/database"
	"vitalwatch/internal/evaluator"
	"vitalwatch/internal/handler"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/mqtt"
	"vitalwatch/internal/repository"
	"vitalwatch/internal/server"
	"vitalwatch/internal/service"
	"vitalwatch/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := newLogger(&cfg.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("configuration invalid", zap.Error(err))
	}

	log.Info("starting vitalwatch",
		zap.String("environment", cfg.Server.Environment),
	)

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Health(context.Background()); err != nil {
		log.Fatal("database health check failed", zap.Error(err))
	}
	log.Info("database connected")

	alertRepo := repository.NewAlertRepository(db.DB)
	vitalsRepo := repository.NewVitalsRepository(db.DB)
	patientRepo := repository.NewPatientRepository(db.DB)

	m := metrics.New()
	registry := websocket.NewRegistry(log)
	router := websocket.NewRouter(registry, m, log)

	alertService := service.NewAlertService(alertRepo, patientRepo, router, m, log)

	tracker := service.NewDeviceTracker()
	ev := evaluator.New(cfg.Monitor.Ranges)
	vitalsService := service.NewVitalsService(vitalsRepo, patientRepo, ev, alertService, router, m, log, tracker)

	monitor := service.NewDeviceMonitor(tracker, alertService, cfg.Monitor.DeviceTimeout, cfg.Monitor.DeviceCheckInterval, log)
	monitor.Start()
	defer monitor.Stop()

	mqttClient := mqtt.NewClient(&cfg.MQTT, vitalsService, log)
	if err := mqttClient.Connect(); err != nil {
		// The HTTP surface still works without the broker; devices will be
		// picked up when the auto-reconnect succeeds.
		log.Warn("mqtt broker unavailable at startup", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	handlers := &server.Handlers{
		Vitals:    handler.NewVitalsHandler(vitalsService, log),
		Alerts:    handler.NewAlertHandler(alertService, log),
		Health:    handler.NewHealthHandler(db, mqttClient, log),
		Websocket: handler.NewWebsocketHandler(registry, log),
	}

	srv := server.New(cfg, handlers, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("shutdown complete")
}

func newLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zcfg.Level = level
	}

	return zcfg.Build()
}

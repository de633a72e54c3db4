package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lecturenotify/config"
	"lecturenotify/domain"
	"lecturenotify/pkg/vault"
	"lecturenotify/services/notification/delivery"
	"lecturenotify/services/notification/provider"
	"lecturenotify/services/notification/repository"
	"lecturenotify/services/notification/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger
var wg sync.WaitGroup

func main() {
	config.Conf()
	log = config.GetLogrusInstance()

	startHTTP()
}

func startHTTP() {
	log.Info("Starting HTTP")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := fiber.New(config.GetFiberConfig())

	// CORS Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	db, err := config.BootDB()
	if err != nil {
		log.Fatalf("Failed to boot DB: %v", err)
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB handle: %v", err)
		return
	}

	secrets, err := vault.New(config.GetEncryptionKey())
	if err != nil {
		log.Fatalf("Failed to init credential vault: %v", err)
		return
	}

	scannerSettings, err := config.GetScannerSettings()
	if err != nil {
		log.Fatalf("Invalid reminder timezone: %v", err)
		return
	}

	checks := map[string]usecase.HealthCheck{
		"database": usecase.DatabaseCheck(sqlDB),
	}

	// Regis repo and Usecase Here
	settingsRepo := repository.NewSettingsRepository(db)
	rdb, err := config.BootRedis(ctx)
	if err != nil {
		log.Warnf("Redis unavailable, settings cache disabled: %v", err)
	}
	if rdb != nil {
		settingsRepo = repository.NewCachedSettingsRepository(settingsRepo, rdb, config.GetSettingsCacheTTL(), log)
		checks["redis"] = usecase.RedisCheck(rdb)
	}
	logRepo := repository.NewDeliveryLogRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	lookup := repository.NewScheduleLookup(db)

	var whatsapp provider.WhatsAppSender
	if config.IsWhatsAppEnabled() {
		client, err := config.InitWhatsApp(ctx)
		if err != nil {
			log.Errorf("WhatsApp session unavailable: %v", err)
		} else {
			whatsapp = client
			defer client.Disconnect()
		}
	}

	providers := []domain.ChannelProvider{
		provider.NewEmailProvider(secrets, nil),
		provider.NewSMSProvider(secrets, nil, whatsapp),
		provider.NewPushProvider(secrets, nil),
		provider.NewCalendarProvider(secrets, nil, scannerSettings.Location),
	}

	timeOut := config.GetUseCaseTimeout()
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, auditRepo, secrets, log, timeOut)
	dispatcher := usecase.NewDispatcher(settingsRepo, logRepo, providers, log, config.GetDispatchWorkers(), config.GetProviderTimeout())
	testerUC := usecase.NewTesterUseCase(settingsRepo, providers, log, config.GetProviderTimeout())
	historyUC := usecase.NewHistoryUseCase(logRepo, auditRepo, timeOut)

	var scanner domain.ScannerUseCase
	if config.IsReminderEnabled() {
		scanner = usecase.NewReminderScanner(lookup, dispatcher, log, usecase.ScannerConfig{
			Interval:    scannerSettings.Interval,
			Window:      scannerSettings.Window,
			TickTimeout: scannerSettings.TickTimeout,
			Workers:     scannerSettings.Workers,
			Location:    scannerSettings.Location,
		})
	}
	healthUC := usecase.NewHealthUseCase(checks, scanner, timeOut)

	// delivery here
	delivery.NewNotificationDelivery(app, settingsUC, testerUC, dispatcher, historyUC, healthUC)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if scanner != nil {
		scanner.Start(ctx)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("Starting HTTP server on port %s", config.GetFiberHttpPort())
		if err := app.Listen(config.GetFiberListenAddress()); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan

	log.Info("Shutting down the server...")

	if scanner != nil {
		scanner.Stop()
	}
	if err := app.Shutdown(); err != nil {
		log.Errorf("Error during server shutdown: %v", err)
	}

	wg.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorf("Error closing database: %v", err)
	}
	log.Info("Server shut down gracefully")
}

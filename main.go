package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"leadpilot/config"
	"leadpilot/dispatch"
	"leadpilot/middleware"
	"leadpilot/models"
	"leadpilot/provider"
	"leadpilot/queue"
	"leadpilot/routes"
	"leadpilot/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			log.Fatalf("Failed to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	q, err := buildQueue()
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	registry := buildProviderRegistry()
	orchestrator := dispatch.NewOrchestrator(config.DB, registry, config.AppConfig.Provider.SendTimeout, log)
	sender := dispatch.NewBatchSender(config.DB, q, log)
	feedback := dispatch.NewFeedback(config.DB, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatchWorker := worker.NewDispatchWorker(q, orchestrator, config.AppConfig.DispatchWorkers, log)
	go func() {
		if err := dispatchWorker.Start(ctx); err != nil {
			log.WithField("error", err).Error("dispatch worker exited")
		}
	}()

	resetWorker := worker.NewResetWorker(config.DB, log)
	go resetWorker.Start(ctx)

	app := fiber.New()
	app.Use(middleware.CORS())
	routes.Setup(app, config.DB, sender, feedback, log)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		_ = app.Shutdown()
	}()

	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func buildQueue() (queue.Queue, error) {
	if config.AppConfig.Provider.UseSandbox {
		return queue.NewMemoryQueue(models.StatsBatchCap * 10), nil
	}
	return queue.NewAMQPQueue(config.AppConfig.AMQPURL, config.AppConfig.DispatchQueueName)
}

func buildProviderRegistry() *provider.Registry {
	cfg := config.AppConfig.Provider
	if cfg.UseSandbox {
		return provider.NewRegistry(
			provider.NewSandboxGateway(models.ProviderTelnyx),
			provider.NewSandboxGateway(models.ProviderTwilio),
			provider.NewSandboxGateway(models.ProviderInteliquent),
		)
	}
	return provider.NewRegistry(
		provider.NewTelnyxGateway(cfg.TelnyxAPIKey, cfg.SendTimeout),
		provider.NewTwilioGateway(cfg.TwilioSID, cfg.TwilioToken, cfg.SendTimeout),
		provider.NewInteliquentGateway(cfg.InteliquentServiceURL, cfg.SendTimeout),
	)
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/iota-uz/provisioning-sdk/internal/server"
	"github.com/iota-uz/provisioning-sdk/modules"
	provisioningservices "github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/configuration"
	"github.com/iota-uz/provisioning-sdk/pkg/eventbus"
	"github.com/iota-uz/provisioning-sdk/pkg/logging"
	"github.com/iota-uz/provisioning-sdk/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	app := application.New(&application.ApplicationOptions{
		Configuration: conf,
		EventBus:      eventbus.NewEventPublisher(logger),
		Logger:        logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	app.RegisterControllers(metrics.NewHealthController())
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	sessions := app.Service(provisioningservices.RuleBuilderService{}).(*provisioningservices.RuleBuilderService)
	go sessions.RunSweeper(ctx, conf.Provisioning.SweepInterval)

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

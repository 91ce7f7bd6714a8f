package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aeromap/odm-orchestrator/internal/config"
	"github.com/aeromap/odm-orchestrator/internal/domain"
	"github.com/aeromap/odm-orchestrator/internal/events"
	"github.com/aeromap/odm-orchestrator/internal/orchestrator"
	"github.com/aeromap/odm-orchestrator/internal/platform/catalog"
	"github.com/aeromap/odm-orchestrator/internal/platform/logger"
	"github.com/aeromap/odm-orchestrator/internal/platform/nodeodm"
	"github.com/aeromap/odm-orchestrator/internal/platform/rabbitmq"
	"github.com/aeromap/odm-orchestrator/internal/request"
)

// app holds the wired application components shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	orch     *orchestrator.Orchestrator
	notifier events.Notifier
	loader   *request.Loader
}

// newApp loads configuration and wires the application components.
// With suppressNotifications set, the broker sink is replaced by a no-op so
// local runs do not publish into the platform exchange.
func newApp(configPath string, suppressNotifications bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	var sink events.Notifier
	if suppressNotifications {
		log.Warn("suppressing status notifications")
		sink = events.NopNotifier{}
	} else {
		sink = rabbitmq.NewNotifier(cfg.AMQP, log)
	}
	notifier := events.NewMultiNotifier(log, events.NewLogNotifier(log), sink)

	client := nodeodm.NewClient(cfg.Node, log)
	uploader := catalog.NewUploader(cfg.Catalog, log)
	orch := orchestrator.New(client, notifier, uploader, orchestrator.Config{
		PollInterval:     cfg.Node.PollInterval(),
		PollRetries:      cfg.Node.PollRetries,
		CancelOnShutdown: cfg.Processing.CancelOnShutdown,
		JobOptions:       cfg.Processing.Options(),
	}, log)

	return &app{
		cfg:      cfg,
		logger:   log,
		orch:     orch,
		notifier: notifier,
		loader:   request.NewLoader(log),
	}, nil
}

// installSignalHandler routes SIGINT/SIGTERM into the cooperative shutdown
// flag. A second signal while shutdown is pending terminates immediately.
func (a *app) installSignalHandler() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range signals {
			if force := a.orch.RequestShutdown(); force {
				a.logger.Error("forced shutdown", "signal", sig.String())
				os.Exit(exitFailure)
			}
		}
	}()
}

// close releases long-lived resources.
func (a *app) close() {
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("failed to close notification sink", "error", err)
	}
}

// parseStatuses converts CLI status filter values into the domain enum.
func parseStatuses(values []string) ([]domain.JobStatus, error) {
	statuses := make([]domain.JobStatus, 0, len(values))
	for _, value := range values {
		status, err := domain.ParseJobStatus(strings.ToUpper(strings.TrimSpace(value)))
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

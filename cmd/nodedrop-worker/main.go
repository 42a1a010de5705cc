package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/node-drop/nodedrop/pkg/cmd"
	"github.com/node-drop/nodedrop/pkg/log"
	"github.com/node-drop/nodedrop/pkg/tracer"
	"github.com/node-drop/nodedrop/pkg/worker"
	"github.com/node-drop/nodedrop/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "nodedrop-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker consuming execution jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for execution records",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "state-store-url",
				Usage:    "State store URL (redis:// or memory://)",
				Required: true,
				Sources:  cli.EnvVars("STATE_STORE_URL"),
			},
			&cli.StringFlag{
				Name:     "queue-url",
				Usage:    "Job queue URL (redis:// or memory://)",
				Required: true,
				Sources:  cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("nodedrop-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing NodeDrop worker")

			if _, err := tracer.NewTracer(ctx, "nodedrop-worker"); err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			registry := cmd.NewRegistry(logger)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			store := cmd.NewStateStore(command.String("state-store-url"), logger)
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close state store", "error", err)
				}
			}()

			jobQueue := cmd.NewQueue(command.String("queue-url"), logger)
			defer func() {
				if err := jobQueue.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close queue", "error", err)
				}
			}()

			executor := workflow.NewExecutor(registry, store, eventBus, logger, workerID)

			w := worker.NewWorker(
				workerID,
				jobQueue,
				store,
				persistence.ExecutionRepository(),
				executor,
				eventBus,
				logger,
			)

			return w.Start(ctx)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		panic(err)
	}
}

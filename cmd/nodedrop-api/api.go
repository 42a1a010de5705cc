// Package main provides the NodeDrop execution API server.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/queue"
	"github.com/node-drop/nodedrop/pkg/registry"
	"github.com/node-drop/nodedrop/pkg/scheduler"
	"github.com/node-drop/nodedrop/pkg/statestore"
	"github.com/node-drop/nodedrop/pkg/web"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger      *slog.Logger
	scheduler   *scheduler.Scheduler
	persistence persistence.Persistence
	store       statestore.Store
	registry    *registry.Registry
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	store statestore.Store,
	jobQueue queue.Queue,
	reg *registry.Registry,
) *API {
	return &API{
		logger:      logger,
		scheduler:   scheduler.NewScheduler(jobQueue, store, persistence.ExecutionRepository(), logger),
		persistence: persistence,
		store:       store,
		registry:    reg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.scheduler,
		a.persistence.ExecutionRepository(),
		a.store,
		a.registry,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("NodeDrop API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}

package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/scheduler"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleSchedulerError maps scheduler and storage errors onto RFC-7807
// problem responses.
func handleSchedulerError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrGraphCycle),
		errors.Is(err, models.ErrUnknownNode),
		errors.Is(err, models.ErrTriggerHasIncoming):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("invalid_graph").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, scheduler.ErrContextEvicted):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("context_evicted").
			WithDetail("execution context expired, resume information lost")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsExecutionNotFound(err), statestore.IsStateNotFound(err):
		return notFound(c, "execution not found")

	default:
		return internalError(c, err)
	}
}

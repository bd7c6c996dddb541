package handler

import (
	"context"
	"errors"
	"time"

	"go-warehouse-fulfillment/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindValidation:          fiber.StatusBadRequest,
	service.KindNotFound:            fiber.StatusNotFound,
	service.KindInvalidState:        fiber.StatusConflict,
	service.KindInsufficientStock:   fiber.StatusUnprocessableEntity,
	service.KindCapacityExceeded:    fiber.StatusUnprocessableEntity,
	service.KindConcurrencyConflict: fiber.StatusConflict,
	service.KindUnavailable:         fiber.StatusServiceUnavailable,
}

// writeError maps a service error onto an HTTP status and the error body.
func writeError(c *fiber.Ctx, err error) error {
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	body := fiber.Map{"error": err.Error(), "kind": kind}
	var appErr *service.Error
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		if appErr.Code != "" {
			body["code"] = appErr.Code
		}
	}
	if kind == service.KindUnavailable {
		// storage details stay in the logs
		body["error"] = "Service temporarily unavailable"
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": service.KindValidation})
}

// Helper untuk parse UUID dari path param
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Retrier reruns mutating calls that lost a row-lock race.
type Retrier struct {
	Attempts int
	Backoff  time.Duration
}

func (r Retrier) Do(ctx context.Context, fn func() error) error {
	return service.RetryOnConflict(ctx, r.Attempts, r.Backoff, fn)
}

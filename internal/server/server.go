package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/config"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/middleware"
	"github.com/ecoms/ecoms_account/internal/routes"
)

// Server wraps the Fiber application.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, d routes.Deps) (*Server, error) {
	app := NewApp(cfg.AppName, d.Logger)

	if err := routes.Setup(app, d); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// NewApp builds a Fiber application with the service error handler.
func NewApp(name string, logger *slog.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})
}

// ErrorHandler renders errors as {"reason": ..., "message": ...}. Only
// validation errors carry a message; server faults are logged with their
// full context and rendered as internal_error.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			body := fiber.Map{"reason": reasonForStatus(fe.Code)}
			if fe.Code < fiber.StatusInternalServerError {
				body["message"] = fe.Message
			}
			return c.Status(fe.Code).JSON(body)
		}

		status, reason := apperr.HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			logging.LogError(logger, "request failed", err,
				"method", c.Method(),
				"path", c.Path(),
				"request_id", middleware.RequestIDFrom(c),
			)
		}
		body := fiber.Map{"reason": reason}
		if errors.Is(err, apperr.ErrValidation) {
			body["message"] = apperr.Message(err)
		}
		return c.Status(status).JSON(body)
	}
}

func reasonForStatus(code int) string {
	switch code {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return apperr.ReasonValidation
	case fiber.StatusUnauthorized:
		return apperr.ReasonUnauthorized
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperr.ReasonNotFound
	case fiber.StatusConflict:
		return apperr.ReasonConflict
	default:
		return apperr.ReasonInternal
	}
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

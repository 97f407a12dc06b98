package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ecoms/ecoms_account/internal/auth"
)

// RegisterAuthRoutes wires the login and logout endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

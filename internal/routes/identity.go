package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/auth"
	"github.com/ecoms/ecoms_account/internal/identity"
)

// RegisterIdentityRoutes wires sign-up and the self-service account
// endpoints. idempotency may be nil; requireSession guards the account routes.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, idempotency, requireSession fiber.Handler) {
	if idempotency != nil {
		r.Post("/sign-up", idempotency, h.SignUp)
	} else {
		r.Post("/sign-up", h.SignUp)
	}

	account := r.Group("/users/my-account", requireSession)
	account.Get("", withProfile(h.Me))
	account.Put("", withProfile(h.UpdateMe))
}

// withProfile hands the id resolved by the session guard to an identity handler.
func withProfile(next func(c *fiber.Ctx, id string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		profile, ok := auth.CurrentProfile(c)
		if !ok {
			return apperr.ErrUnauthorized
		}
		return next(c, profile.ID)
	}
}

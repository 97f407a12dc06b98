package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/session"
)

type profileKey struct{}

// Handler exposes the login and logout endpoints.
type Handler struct {
	svc     *Service
	cookies session.CookiePolicy
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service, cookies session.CookiePolicy) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials, sets the session cookie and returns the profile.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("request body must be a JSON object")
	}
	profile, sess, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.cookies.Issue(c, sess)
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": profile})
}

// Logout destroys the current session, if any, and clears the cookie. The
// cookie is cleared even when the store fails to destroy the session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	token := h.cookies.Token(c)
	h.cookies.Clear(c)
	if err := h.svc.Logout(c.UserContext(), token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RequireSession admits only requests with a live session and stores the
// resolved profile for CurrentProfile. A rejected cookie is cleared and a
// session extended by a sliding policy gets its cookie reissued.
func RequireSession(guard *Guard, cookies session.CookiePolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := cookies.Token(c)
		access, err := guard.Admit(c.UserContext(), token)
		if err != nil {
			if token != "" && errors.Is(err, apperr.ErrUnauthorized) {
				cookies.Clear(c)
			}
			return err
		}
		if access.Extended {
			cookies.Issue(c, access.Session)
		}
		c.Locals(profileKey{}, access.Profile)
		return c.Next()
	}
}

// CurrentProfile returns the profile resolved by RequireSession.
func CurrentProfile(c *fiber.Ctx) (identity.Profile, bool) {
	p, ok := c.Locals(profileKey{}).(identity.Profile)
	return p, ok
}

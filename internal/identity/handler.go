package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

// Handler exposes the public account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// SignUp registers a new customer.
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req signUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("request body must be a JSON object")
	}
	if _, err := h.service.SignUp(c.UserContext(), SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	}); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "Account successfully created"})
}

type updateRequest struct {
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
}

// Me returns the profile of the customer id resolved by the session guard.
func (h *Handler) Me(c *fiber.Ctx, id string) error {
	profile, err := h.service.Profile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": profile})
}

// UpdateMe applies the request body to the customer resolved by the session guard.
func (h *Handler) UpdateMe(c *fiber.Ctx, id string) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("request body must be a JSON object")
	}
	profile, err := h.service.UpdateProfile(c.UserContext(), id, UpdateInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"identity": profile})
}

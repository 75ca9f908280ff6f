package handler

import (
	"context"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/gofiber/fiber/v2"
)

// UserStore is the lookup surface profile routes need. Satisfied by
// repository.UserRepository.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type UserHandler struct {
	userRepo UserStore
}

func NewUserHandler(userRepo UserStore) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// GET /api/v1/users/:id returns the public seller card.
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}

	return c.JSON(user.Public())
}

// GET /api/v1/users/me
func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}

	return c.JSON(user)
}

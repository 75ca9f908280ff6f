package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/SageGlitchy/CMart/internal/model"
	"github.com/SageGlitchy/CMart/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	chatSvc *service.ChatService
}

func NewChatHandler(chatSvc *service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// GET /api/v1/chat/conversations
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	convs, err := h.chatSvc.ListConversations(c.Context(), userID)
	if err != nil {
		log.Printf("[CHAT] list conversations error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to list conversations"})
	}

	return c.JSON(fiber.Map{"conversations": convs})
}

// POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req model.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	msg, err := h.chatSvc.SendMessage(c.Context(), userID, &req)
	if err != nil {
		return chatError(c, err)
	}

	return c.Status(201).JSON(msg)
}

// GET /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	msgs, err := h.chatSvc.ListMessages(c.Context(), c.Params("id"), userID, limit)
	if err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": msgs})
}

// POST /api/v1/chat/conversations/:id/read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.chatSvc.MarkRead(c.Context(), c.Params("id"), userID); err != nil {
		return chatError(c, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}

func chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "conversation not found"})
	case errors.Is(err, service.ErrNotParticipant):
		return c.Status(403).JSON(fiber.Map{"error": "not a participant of this conversation"})
	case errors.Is(err, service.ErrSelfMessage):
		return c.Status(400).JSON(fiber.Map{"error": "cannot message yourself"})
	case errors.Is(err, service.ErrInvalidMessage):
		return c.Status(400).JSON(fiber.Map{"error": "invalid message"})
	default:
		log.Printf("[CHAT ERROR] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}

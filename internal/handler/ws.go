package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"
	"github.com/SageGlitchy/CMart/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type WSHandler struct {
	hub     *service.WSHub
	authSvc *service.AuthService
	chatSvc *service.ChatService
}

func NewWSHandler(hub *service.WSHub, authSvc *service.AuthService, chatSvc *service.ChatService) *WSHandler {
	return &WSHandler{hub: hub, authSvc: authSvc, chatSvc: chatSvc}
}

func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		// Validate JWT from query param (browsers cannot set headers on WS)
		token := c.Query("token")
		if token == "" {
			return c.Status(401).JSON(fiber.Map{"error": "token required"})
		}

		userID, username, err := h.authSvc.ValidateAccessToken(token)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("user_id", userID)
		c.Locals("username", username)
		return websocket.New(h.handleConnection)(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *WSHandler) handleConnection(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	username, _ := c.Locals("username").(string)

	client := &service.WSClient{
		Conn:     c,
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader loop
	c.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		// Reset deadline on any message
		c.SetReadDeadline(time.Now().Add(60 * time.Second))

		var event model.WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}

		switch event.Type {
		case "ping":
			pong, _ := json.Marshal(model.WSEvent{Type: "pong"})
			select {
			case client.Send <- pong:
			default:
			}
		case model.EventTyping:
			var typing model.TypingEvent
			if err := json.Unmarshal(event.Data, &typing); err != nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = h.chatSvc.RelayTyping(ctx, typing.ConversationID, userID, typing.Typing)
			cancel()
		default:
			log.Printf("WS: unknown event type %s from %s", event.Type, username)
		}
	}
}

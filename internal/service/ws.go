package service

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/gofiber/contrib/websocket"
)

type WSClient struct {
	Conn     *websocket.Conn
	UserID   string
	Username string
	Send     chan []byte
}

// WSHub tracks connected clients per user. A user may hold several
// connections (phone + laptop); SendToUser fans out to all of them.
type WSHub struct {
	clients    map[string]map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte
	mu         sync.RWMutex
	done       chan struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*WSClient]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
			log.Printf("WS: %s connected", client.Username)

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok && conns[client] {
				delete(conns, client)
				close(client.Send)
				if len(conns) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
			log.Printf("WS: %s disconnected", client.Username)

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, conns := range h.clients {
				for client := range conns {
					select {
					case client.Send <- message:
					default:
						close(client.Send)
						delete(conns, client)
					}
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *WSHub) Shutdown() {
	close(h.done)
}

func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}

func (h *WSHub) Broadcast(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast <- data
}

// SendToUser delivers an event to every connection the user holds. Slow or
// gone clients are skipped; delivery is best-effort by contract.
func (h *WSHub) SendToUser(userID string, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// Online reports whether the user has at least one open connection.
func (h *WSHub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *WSHub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

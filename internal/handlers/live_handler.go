package handlers

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"route-recon/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const liveWriteTimeout = 5 * time.Second

// LiveHandler pushes saves and lock changes to dashboards over a websocket.
// It implements services.Notifier.
type LiveHandler struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan models.Activity
}

func NewLiveHandler() *LiveHandler {
	return &LiveHandler{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan models.Activity, 64),
	}
}

// Notify queues an activity for broadcast. It drops the event when the
// queue is full rather than stall a save.
func (h *LiveHandler) Notify(a models.Activity) {
	select {
	case h.broadcast <- a:
	default:
		log.Printf("[Live] Broadcast queue full, dropping %s %s", a.Type, a.Route)
	}
}

// Run fans queued activity out to every connected client until ctx ends.
func (h *LiveHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case a := <-h.broadcast:
			h.clientsMux.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
				if err := client.WriteJSON(a); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.clientsMux.Unlock()
		}
	}
}

// Clients returns the number of connected dashboards.
func (h *LiveHandler) Clients() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

func (h *LiveHandler) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// ServeWS handles GET /ws/activity
func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Live] WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	h.clientsMux.Lock()
	h.clients[conn] = true
	h.clientsMux.Unlock()

	// Dashboards only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.clientsMux.Lock()
			delete(h.clients, conn)
			h.clientsMux.Unlock()
			return
		}
	}
}

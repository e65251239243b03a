package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub reparte eventos de mutación (site, guild-config, rsvp) a los clientes
// web conectados. Emit es fire-and-forget: un cliente caído se descarta y el
// caller nunca ve el error.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu sync.Mutex
	// un mutex de escritura por conexión: gorilla/websocket no tolera
	// WriteMessage concurrente sobre el mismo conn
	clients map[*websocket.Conn]*sync.Mutex
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// el dashboard se sirve desde otro host en dev
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]*sync.Mutex{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade", "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()

	// drenamos lecturas solo para detectar el cierre
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) Emit(event string, payload any) {
	raw, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		h.log.Warn("ws marshal", "event", event, "err", err)
		return
	}

	type target struct {
		conn *websocket.Conn
		wmu  *sync.Mutex
	}
	h.mu.Lock()
	targets := make([]target, 0, len(h.clients))
	for c, wmu := range h.clients {
		targets = append(targets, target{conn: c, wmu: wmu})
	}
	h.mu.Unlock()

	for _, t := range targets {
		t.wmu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, raw)
		t.wmu.Unlock()
		if err != nil {
			h.drop(t.conn)
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		_ = c.Close()
	}
	h.mu.Unlock()
}

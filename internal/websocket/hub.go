package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	// broadcastBuffer bounds how many events may wait for the dispatch loop.
	broadcastBuffer = 64
	sendBuffer      = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already restricted by CORS and the token check.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Roles allowed to subscribe to analysis events.
var subscriberRoles = map[string]bool{"admin": true, "analyst": true, "viewer": true}

// Scoped is implemented by event payloads that belong to one analysis.
// Subscribers that asked for a single analysis only receive its events.
type Scoped interface {
	Scope() string
}

// Event is the envelope every message is sent in.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type message struct {
	scope   string
	payload []byte
}

// Client is one connected subscriber. An empty scope receives every event.
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	scope string
}

func (c *Client) wants(m message) bool {
	return c.scope == "" || m.scope == "" || c.scope == m.scope
}

// Hub fans analysis events out to subscribers.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Publish queues an event for subscribers. It never blocks: when the queue
// is full the event is dropped and logged.
func (h *Hub) Publish(event string, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Printf("[ws] failed to encode %s event: %v", event, err)
		return
	}
	m := message{payload: payload}
	if s, ok := data.(Scoped); ok {
		m.scope = s.Scope()
	}
	select {
	case h.Broadcast <- m:
	default:
		log.Printf("[ws] broadcast queue full, dropped %s event", event)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run is the dispatch loop. It owns client registration and must be
// started once before ServeWs is used.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[ws] client connected (scope %q)", client.scope)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Println("[ws] client disconnected")
			}
			h.mu.Unlock()
		case m := <-h.Broadcast:
			h.deliver(m)
		}
	}
}

func (h *Hub) deliver(m message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(m) {
			continue
		}
		select {
		case client.Send <- m.payload:
		default:
			log.Println("[ws] dropping slow client")
			h.drop(client)
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.Send)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close frames and pongs; subscribers never send.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
	}
}

// ServeWs checks the token query parameter and upgrades the request.
// analysis_id narrows the subscription to one analysis.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	role, status := authorize(c.Query("token"), secret)
	if status != http.StatusOK {
		c.AbortWithStatus(status)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[ws] upgrade failed:", err)
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), scope: c.Query("analysis_id")}
	hub.register <- client
	log.Printf("[ws] %s subscribed", role)

	go client.writePump()
	go client.readPump()
}

// authorize returns the subscriber's role, or the status to reject with.
func authorize(tokenString string, secret []byte) (string, int) {
	if tokenString == "" {
		log.Println("[ws] connection rejected: missing token")
		return "", http.StatusUnauthorized
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		log.Println("[ws] connection rejected: invalid token:", err)
		return "", http.StatusUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", http.StatusUnauthorized
	}
	role, _ := claims["role"].(string)
	if !subscriberRoles[role] {
		log.Printf("[ws] connection rejected: role %q may not subscribe", role)
		return "", http.StatusForbidden
	}
	return role, http.StatusOK
}

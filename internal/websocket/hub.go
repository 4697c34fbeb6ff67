package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
	"suzy-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseToken(tokenStr string) (uuid.UUID, string, error)
}

type participantLookup interface {
	GetParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub relays published session events to the websocket clients in each
// session room. One Redis subscription is held per room with listeners.
type Hub struct {
	mu           sync.RWMutex
	rooms        map[uuid.UUID]map[*client]struct{}
	cancelFuncs  map[uuid.UUID]context.CancelFunc
	redisClient  *redis.Client
	auth         tokenParser
	participants participantLookup
}

func NewHub(redisClient *redis.Client, auth tokenParser, participants participantLookup) *Hub {
	return &Hub{
		rooms:        make(map[uuid.UUID]map[*client]struct{}),
		cancelFuncs:  make(map[uuid.UUID]context.CancelFunc),
		redisClient:  redisClient,
		auth:         auth,
		participants: participants,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, _, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	p, err := h.participants.GetParticipant(r.Context(), sessionID, userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Active()) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID.String()).Msg("participant lookup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(sessionID, c)

	go h.writePump(sessionID, c)
	go h.readPump(sessionID, c)
}

func (h *Hub) register(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[sessionID] = room

		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribe(ctx, sessionID)
	}
	room[c] = struct{}{}

	log.Debug().Str("sessionId", sessionID.String()).Str("userId", c.userID.String()).Int("clients", len(room)).Msg("websocket connected")
}

func (h *Hub) unregister(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)

	if len(room) == 0 {
		delete(h.rooms, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Debug().Str("sessionId", sessionID.String()).Str("userId", c.userID.String()).Msg("websocket disconnected")
}

func (h *Hub) subscribe(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.SessionChannel(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// broadcast queues data for every client in the room. A client whose
// buffer is full is skipped for this message.
func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[sessionID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("sessionId", sessionID.String()).Str("userId", c.userID.String()).Msg("websocket send buffer full, dropping event")
		}
	}
}

func (h *Hub) readPump(sessionID uuid.UUID, c *client) {
	defer func() {
		h.unregister(sessionID, c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sessionID uuid.UUID, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("sessionId", sessionID.String()).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close drops every room and its subscription. Connected clients receive a
// close frame from their write pump.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
		}
	}
	h.rooms = make(map[uuid.UUID]map[*client]struct{})
	h.cancelFuncs = make(map[uuid.UUID]context.CancelFunc)
}

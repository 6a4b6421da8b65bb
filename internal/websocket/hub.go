package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	keepalive     = idleTimeout * 9 / 10
	maxInboundLen = 512
	queueDepth    = 256
)

// Event types handled by the hub itself.
const (
	TypeSyncRequest = "view:sync"
	TypeSnapshot    = "view:snapshot"
)

// ErrBacklog is returned when the broadcast queue is full.
var ErrBacklog = errors.New("websocket broadcast queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The api layer restricts Host; the dashboard has no cross-origin use.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Event is the envelope for every frame sent to or received from the
// dashboard.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// SnapshotFunc returns the current view state sent to clients that ask
// for a resync.
type SnapshotFunc func() any

type request struct {
	from *peer
	data []byte
}

// Hub fans view and log events out to every connected dashboard tab.
type Hub struct {
	mu       sync.RWMutex
	peers    map[*peer]struct{}
	snapshot SnapshotFunc

	events  chan []byte
	joins   chan *peer
	leaves  chan *peer
	inbound chan request
	done    chan struct{}

	logger zerolog.Logger
}

type peer struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte
}

// NewHub creates a hub. Nothing is delivered until Run is called.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		peers:   make(map[*peer]struct{}),
		events:  make(chan []byte, queueDepth),
		joins:   make(chan *peer),
		leaves:  make(chan *peer),
		inbound: make(chan request, queueDepth),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
}

// SetSnapshotHandler registers the source of view:sync replies.
func (h *Hub) SetSnapshotHandler(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Run delivers events until ctx is done, then disconnects every peer.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-h.joins:
			h.mu.Lock()
			h.peers[p] = struct{}{}
			n := len(h.peers)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("Dashboard client connected")
		case p := <-h.leaves:
			h.mu.Lock()
			h.drop(p)
			h.mu.Unlock()
		case data := <-h.events:
			h.fanOut(data)
		case req := <-h.inbound:
			h.handle(req)
		}
	}
}

func (h *Hub) closeAll() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		h.drop(p)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(p *peer) {
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.out)
	}
}

// fanOut disconnects peers whose queue is full rather than stalling the rest.
func (h *Hub) fanOut(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		select {
		case p.out <- data:
		default:
			h.drop(p)
		}
	}
}

func (h *Hub) handle(req request) {
	var ev Event
	if err := json.Unmarshal(req.data, &ev); err != nil || ev.Type != TypeSyncRequest {
		return
	}

	h.mu.RLock()
	fn := h.snapshot
	_, connected := h.peers[req.from]
	h.mu.RUnlock()
	if fn == nil || !connected {
		return
	}

	data, err := encode(TypeSnapshot, fn())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode snapshot")
		return
	}
	select {
	case req.from.out <- data:
	default:
	}
}

func encode(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Broadcast queues an event for all connected clients. It never blocks;
// a full queue drops the event and returns ErrBacklog.
func (h *Hub) Broadcast(eventType string, payload any) error {
	data, err := encode(eventType, payload)
	if err != nil {
		return err
	}
	select {
	case h.events <- data:
		return nil
	default:
		return ErrBacklog
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// HandleWebSocket upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	p := &peer{hub: h, conn: conn, out: make(chan []byte, queueDepth)}
	select {
	case h.joins <- p:
	case <-h.done:
		conn.Close()
		return nil
	}

	go p.writeLoop()
	go p.readLoop()
	return nil
}

func (p *peer) readLoop() {
	defer func() {
		select {
		case p.hub.leaves <- p:
		case <-p.hub.done:
		}
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxInboundLen)
	extend := func(string) error { return p.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	_ = extend("")
	p.conn.SetPongHandler(extend)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.logger.Debug().Err(err).Msg("Dashboard client closed unexpectedly")
			}
			return
		}
		select {
		case p.hub.inbound <- request{from: p, data: data}:
		case <-p.hub.done:
			return
		}
	}
}

func (p *peer) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

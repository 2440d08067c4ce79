package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client outbound queue. A client that falls this
	// far behind starts losing frames.
	sendBuffer = 64
)

var errServerEvent = errors.New("event is server to client only")

// SessionEngine is the part of the engine the WebSocket hub drives.
// Every call is safe from connection goroutines.
type SessionEngine interface {
	Connect(name string) (game.EntityID, bool)
	Disconnect(id game.EntityID)
	SubmitInput(id game.EntityID, in game.Input) bool
	RequestReload(id game.EntityID)
	RequestSkin(id game.EntityID, skin string) bool
	RequestEquip(id game.EntityID, itemID string)
	Config() game.EngineConfig
}

// wsClient is one player session on a WebSocket connection
type wsClient struct {
	hub     *WebSocketHub
	conn    *websocket.Conn
	ip      string
	session string
	id      game.EntityID
	codec   protocol.Codec
	send    chan []byte
}

// outbound holds one message encoded once per codec in use
type outbound struct {
	frames map[string][]byte
}

// WebSocketHub is the transport between sessions and the engine: it admits
// connections, feeds their messages to the engine and fans snapshots out.
type WebSocketHub struct {
	engine       SessionEngine
	limits       config.ResourceLimits
	defaultCodec protocol.Codec
	upgrader     websocket.Upgrader

	clients    map[*wsClient]bool
	broadcast  chan outbound
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	// lastRoster is the newest roster, sent to each client on register so
	// a join never misses its own roster update
	lastRoster []protocol.PlayerState

	gate   *ConnectionGate
	inputs *SessionLimiter
}

// NewWebSocketHub creates a hub. Nothing runs until Run is called.
func NewWebSocketHub(engine SessionEngine, limits config.ResourceLimits, origins *OriginPolicy, defaultCodec protocol.Codec) *WebSocketHub {
	if origins == nil {
		origins = NewOriginPolicy(nil)
	}
	if defaultCodec == nil {
		defaultCodec = protocol.JSON
	}

	h := &WebSocketHub{
		engine:       engine,
		limits:       limits,
		defaultCodec: defaultCodec,
		clients:      make(map[*wsClient]bool),
		broadcast:    make(chan outbound, 256),
		register:     make(chan *wsClient),
		unregister:   make(chan *wsClient),
		done:         make(chan struct{}),
		gate:         NewConnectionGate(limits.MaxWSConnectionsTotal, limits.MaxWSConnectionsPerIP),
		inputs:       NewSessionLimiter(limits.InputRate, limits.InputBurst),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}

			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run processes registrations and broadcasts until Stop is called
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			roster := h.lastRoster
			h.mu.Unlock()

			if roster != nil {
				if frame, err := client.codec.Encode(protocol.EventPlayersUpdate, roster); err == nil {
					client.queue(frame)
				}
			}

			log.Printf("📱 Client #%d connected from %s (%d total)", client.id, client.ip, count)
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.release(client)
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client #%d disconnected (%d remaining)", client.id, count)
			UpdateWSConnections(count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if frame, ok := msg.frames[client.codec.Name()]; ok {
					client.queue(frame)
				}
			}
			h.mu.RUnlock()
			IncrementWSMessages()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				h.release(client)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// release frees everything a registered session holds
func (h *WebSocketHub) release(c *wsClient) {
	h.gate.Release(c.ip)
	h.inputs.Forget(c.id)
	h.engine.Disconnect(c.id)
}

// Stop closes every connection and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastState implements game.Broadcaster. It runs on the tick
// goroutine, so it only encodes and hands off; it never blocks.
func (h *WebSocketHub) BroadcastState(snap *game.GameSnapshot) {
	codecs := h.codecsInUse()

	var roster []protocol.PlayerState
	if snap.RosterChanged {
		roster = protocol.RosterFromSnapshot(snap)
		h.mu.Lock()
		h.lastRoster = roster
		h.mu.Unlock()
	}
	if len(codecs) == 0 {
		return
	}

	if roster != nil {
		h.queueBroadcast(encodeAll(codecs, protocol.EventPlayersUpdate, roster))
	}
	h.queueBroadcast(encodeAll(codecs, protocol.EventGameState, protocol.FromSnapshot(snap)))
}

func (h *WebSocketHub) queueBroadcast(msg outbound) {
	if len(msg.frames) == 0 {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Channel full, skip (backpressure)
		RecordFrameDropped()
	}
}

func encodeAll(codecs []protocol.Codec, event string, data any) outbound {
	msg := outbound{frames: make(map[string][]byte, len(codecs))}
	for _, c := range codecs {
		frame, err := c.Encode(event, data)
		if err != nil {
			log.Printf("⚠️ Failed to encode %s as %s: %v", event, c.Name(), err)
			continue
		}
		msg.frames[c.Name()] = frame
	}
	return msg
}

func (h *WebSocketHub) codecsInUse() []protocol.Codec {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var codecs []protocol.Codec
	seen := make(map[string]bool, 2)
	for client := range h.clients {
		name := client.codec.Name()
		if !seen[name] {
			seen[name] = true
			codecs = append(codecs, client.codec)
		}
	}
	return codecs
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket admits a session with DoS protection.
//
// Query parameters: name (display name), codec (json or msgpack).
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := GetClientIP(r)

	// The slot is held from here until unregister or a failed handshake
	if err := h.gate.Acquire(ip); err != nil {
		log.Printf("⚠️ WebSocket connection from %s rejected: %v", ip, err)
		if errors.Is(err, errServerFull) {
			RecordConnectionRejected("ws_total_limit")
			writeError(w, err.Error(), http.StatusServiceUnavailable)
		} else {
			RecordConnectionRejected("ws_ip_limit")
			writeError(w, err.Error(), http.StatusTooManyRequests)
		}
		return
	}

	codec := h.defaultCodec
	if name := r.URL.Query().Get("codec"); name != "" {
		c, err := protocol.CodecByName(name)
		if err != nil {
			h.gate.Release(ip)
			RecordConnectionRejected("codec")
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	id, ok := h.engine.Connect(protocol.SanitizeName(r.URL.Query().Get("name")))
	if !ok {
		h.gate.Release(ip)
		RecordConnectionRejected("arena_full")
		writeError(w, "arena is full", http.StatusServiceUnavailable)
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.engine.Disconnect(id)
		h.gate.Release(ip)
		return
	}

	client := &wsClient{
		hub:     h,
		conn:    conn,
		ip:      ip,
		session: uuid.NewString(),
		id:      id,
		codec:   codec,
		send:    make(chan []byte, sendBuffer),
	}

	if err := client.welcome(); err != nil {
		log.Printf("⚠️ Welcome to #%d failed: %v", id, err)
		conn.Close()
		h.engine.Disconnect(id)
		h.gate.Release(ip)
		return
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		h.engine.Disconnect(id)
		h.gate.Release(ip)
		return
	}

	go client.writePump()
	go client.readPump()
}

// welcome is written before the pumps start so it is always the first frame
func (c *wsClient) welcome() error {
	cfg := c.hub.engine.Config()
	frame, err := c.codec.Encode(protocol.EventWelcome, protocol.Welcome{
		ID:       c.id,
		Arena:    protocol.ArenaInfo{Width: cfg.Arena.Width, Height: cfg.Arena.Height},
		TickRate: cfg.Sim.TickRate,
		Skins:    game.Skins,
	})
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(c.messageType(), frame)
}

// queue hands a frame to the write pump, dropping it if the client is
// backed up. Only Run calls it, and only Run closes send.
func (c *wsClient) queue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		RecordFrameDropped()
	}
}

func (c *wsClient) messageType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.messageType(), frame); err != nil {
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

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	if c.hub.limits.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.hub.limits.MaxMessageBytes)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Session %s (#%d) read error: %v", c.session, c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.hub.inputs.Allow(c.id) {
			continue
		}
		if err := c.hub.dispatch(c, data); err != nil {
			RecordInbound("malformed")
			log.Printf("⚠️ Session %s (#%d) sent a bad frame: %v", c.session, c.id, err)
		}
	}
}

// dispatch decodes one inbound frame and forwards it to the engine.
// Gameplay rejections are silent; only malformed frames return an error.
func (h *WebSocketHub) dispatch(c *wsClient, data []byte) error {
	frame, err := c.codec.Decode(data)
	if err != nil {
		return err
	}

	switch frame.Event {
	case protocol.EventInput:
		msg, err := protocol.DecodePayload[protocol.InputMessage](frame)
		if err != nil {
			return err
		}
		if err := protocol.ValidateInput(msg); err != nil {
			return err
		}
		if !h.engine.SubmitInput(c.id, protocol.ToInput(msg)) {
			RecordInbound("dropped")
			return nil
		}

	case protocol.EventReload:
		h.engine.RequestReload(c.id)

	case protocol.EventChangeSkin:
		skin, err := protocol.DecodePayload[string](frame)
		if err != nil {
			return err
		}
		h.engine.RequestSkin(c.id, skin)

	case protocol.EventEquip:
		msg, err := protocol.DecodePayload[protocol.EquipMessage](frame)
		if err != nil {
			return err
		}
		h.engine.RequestEquip(c.id, msg.ItemID)

	default:
		return fmt.Errorf("%w: %q", errServerEvent, frame.Event)
	}

	RecordInbound("accepted")
	return nil
}

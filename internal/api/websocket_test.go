package api

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/protocol"

	"github.com/gorilla/websocket"
)

// ============================================================================
// dispatch (no network)
// ============================================================================

// fakeSessions records what the hub forwards
type fakeSessions struct {
	mu      sync.Mutex
	inputs  []game.Input
	reloads int
	skins   []string
	equips  []string
}

func (f *fakeSessions) Connect(string) (game.EntityID, bool) { return 1, true }
func (f *fakeSessions) Disconnect(game.EntityID)             {}
func (f *fakeSessions) Config() game.EngineConfig            { return game.EngineConfigFrom(config.Default()) }

func (f *fakeSessions) SubmitInput(_ game.EntityID, in game.Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return true
}

func (f *fakeSessions) RequestReload(game.EntityID) {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
}

func (f *fakeSessions) RequestSkin(_ game.EntityID, skin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skins = append(f.skins, skin)
	return game.ValidSkin(skin)
}

func (f *fakeSessions) RequestEquip(_ game.EntityID, itemID string) {
	f.mu.Lock()
	f.equips = append(f.equips, itemID)
	f.mu.Unlock()
}

func mustEncode(t *testing.T, c protocol.Codec, event string, data any) []byte {
	t.Helper()
	frame, err := c.Encode(event, data)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	return frame
}

// TestDispatchForwardsCommands verifies each client event reaches the engine
func TestDispatchForwardsCommands(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSON, protocol.MsgPack} {
		t.Run(codec.Name(), func(t *testing.T) {
			engine := &fakeSessions{}
			hub := NewWebSocketHub(engine, config.DefaultLimits(), nil, codec)
			c := &wsClient{hub: hub, id: 1, codec: codec}

			frames := [][]byte{
				mustEncode(t, codec, protocol.EventInput, protocol.InputMessage{
					Right: true, Mouse: protocol.Mouse{X: 3, Y: 4, Down: true}, Angle: 1.5, Seq: 9,
				}),
				mustEncode(t, codec, protocol.EventReload, nil),
				mustEncode(t, codec, protocol.EventChangeSkin, "player2.png"),
				mustEncode(t, codec, protocol.EventChangeSkin, "hacker.png"),
				mustEncode(t, codec, protocol.EventEquip, protocol.EquipMessage{ItemID: "abc"}),
			}
			for i, f := range frames {
				if err := hub.dispatch(c, f); err != nil {
					t.Fatalf("frame %d rejected: %v", i, err)
				}
			}

			if len(engine.inputs) != 1 {
				t.Fatalf("Expected 1 input, got %d", len(engine.inputs))
			}
			in := engine.inputs[0]
			if !in.Right || !in.Fire || in.Seq != 9 || in.Angle != 1.5 || in.MouseX != 3 {
				t.Errorf("Input mangled in transit: %+v", in)
			}
			if engine.reloads != 1 {
				t.Errorf("Expected 1 reload, got %d", engine.reloads)
			}
			// Disallowed skins are still forwarded; the engine rejects them silently
			if len(engine.skins) != 2 {
				t.Errorf("Expected 2 skin requests, got %v", engine.skins)
			}
			if len(engine.equips) != 1 || engine.equips[0] != "abc" {
				t.Errorf("Expected equip abc, got %v", engine.equips)
			}
		})
	}
}

// TestDispatchRejectsBadFrames checks malformed frames surface as errors
func TestDispatchRejectsBadFrames(t *testing.T) {
	hub := NewWebSocketHub(&fakeSessions{}, config.DefaultLimits(), nil, nil)
	jsonClient := &wsClient{hub: hub, id: 1, codec: protocol.JSON}
	packClient := &wsClient{hub: hub, id: 1, codec: protocol.MsgPack}

	tests := []struct {
		name   string
		client *wsClient
		frame  []byte
		want   error
	}{
		{"empty", jsonClient, nil, protocol.ErrEmptyFrame},
		{"unknown event", jsonClient, []byte(`{"event":"teleport","data":{}}`), protocol.ErrUnknownEvent},
		{"server event", jsonClient, []byte(`{"event":"welcome","data":{}}`), errServerEvent},
		{"input without data", jsonClient, []byte(`{"event":"input"}`), protocol.ErrEmptyPayload},
		{"non-finite mouse", packClient, mustEncode(t, protocol.MsgPack, protocol.EventInput,
			protocol.InputMessage{Mouse: protocol.Mouse{X: math.NaN()}}), protocol.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hub.dispatch(tt.client, tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := hub.dispatch(jsonClient, []byte(`not json`)); err == nil {
		t.Error("Expected garbage to be rejected")
	}
}

// ============================================================================
// End-to-end sessions against a real engine
// ============================================================================

type testArena struct {
	engine *game.Engine
	hub    *WebSocketHub
	server *httptest.Server
}

func newTestArena(t *testing.T, maxPlayers int) *testArena {
	t.Helper()
	return newLimitedArena(t, maxPlayers, nil)
}

func newLimitedArena(t *testing.T, maxPlayers int, limit func(*config.ResourceLimits)) *testArena {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxPlayers = maxPlayers
	if limit != nil {
		limit(&cfg.Limits)
	}

	ecfg := game.EngineConfigFrom(cfg)
	ecfg.Seed = 1
	engine := game.NewEngine(ecfg)

	hub := NewWebSocketHub(engine, cfg.Limits, nil, protocol.JSON)
	engine.SetBroadcaster(hub)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})
	return &testArena{engine: engine, hub: hub, server: server}
}

func (a *testArena) dial(t *testing.T, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/?" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn, codec protocol.Codec) protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return frame
}

// readUntil skips frames until one with the wanted event arrives
func readUntil(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string) protocol.Frame {
	t.Helper()
	for i := 0; i < 16; i++ {
		if f := readFrame(t, conn, codec); f.Event == event {
			return f
		}
	}
	t.Fatalf("No %s frame received", event)
	return protocol.Frame{}
}

// TestSessionLifecycle connects, plays and disconnects one client
func TestSessionLifecycle(t *testing.T) {
	arena := newTestArena(t, 8)

	conn, _, err := arena.dial(t, "name=%20alice%20")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readFrame(t, conn, protocol.JSON)
	if first.Event != protocol.EventWelcome {
		t.Fatalf("Expected welcome first, got %s", first.Event)
	}
	welcome, err := protocol.DecodePayload[protocol.Welcome](first)
	if err != nil {
		t.Fatal(err)
	}
	if welcome.ID == 0 || welcome.Arena.Width != 2000 || welcome.TickRate != 60 || len(welcome.Skins) == 0 {
		t.Errorf("Unexpected welcome %+v", welcome)
	}

	waitFor(t, "registration", func() bool { return arena.hub.ClientCount() == 1 })
	arena.engine.Step()

	roster, err := protocol.DecodePayload[[]protocol.PlayerState](readUntil(t, conn, protocol.JSON, protocol.EventPlayersUpdate))
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 1 || roster[0].ID != welcome.ID || roster[0].Name != "alice" || roster[0].Skin == "" {
		t.Errorf("Unexpected roster %+v", roster)
	}

	state, err := protocol.DecodePayload[protocol.GameState](readUntil(t, conn, protocol.JSON, protocol.EventGameState))
	if err != nil {
		t.Fatal(err)
	}
	start, ok := state.Player(welcome.ID)
	if !ok {
		t.Fatal("Own player missing from state")
	}

	msg := mustEncode(t, protocol.JSON, protocol.EventInput, protocol.InputMessage{Right: true, Seq: 1})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "input", func() bool { return arena.engine.GetStats().Inputs.Accepted == 1 })

	for i := 0; i < 10; i++ {
		arena.engine.Step()
	}
	moved, _ := arena.engine.GetSnapshot().Player(welcome.ID)
	if moved.X <= start.X {
		t.Errorf("Expected movement to the right: %.2f -> %.2f", start.X, moved.X)
	}

	conn.Close()
	waitFor(t, "unregister", func() bool { return arena.hub.ClientCount() == 0 })
	arena.engine.Step()
	if n := len(arena.engine.GetSnapshot().Players); n != 0 {
		t.Errorf("Expected the player removed after disconnect, %d left", n)
	}
}

// TestLateJoinGetsRoster verifies a client registering after its admission
// tick still receives the roster containing itself
func TestLateJoinGetsRoster(t *testing.T) {
	arena := newTestArena(t, 8)

	conn, _, err := arena.dial(t, "name=late")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	welcome, _ := protocol.DecodePayload[protocol.Welcome](readFrame(t, conn, protocol.JSON))
	waitFor(t, "registration", func() bool { return arena.hub.ClientCount() == 1 })

	// A second client joins; the first sees the roster grow
	other, _, err := arena.dial(t, "name=other")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer other.Close()
	readFrame(t, other, protocol.JSON)
	waitFor(t, "second registration", func() bool { return arena.hub.ClientCount() == 2 })

	arena.engine.Step()
	roster, _ := protocol.DecodePayload[[]protocol.PlayerState](readUntil(t, conn, protocol.JSON, protocol.EventPlayersUpdate))
	if len(roster) != 2 || roster[0].ID != welcome.ID {
		t.Errorf("Expected both players in id order, got %+v", roster)
	}

	// A third client connecting after that tick gets the cached roster
	late, _, err := arena.dial(t, "name=third")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer late.Close()
	readFrame(t, late, protocol.JSON)

	cached, _ := protocol.DecodePayload[[]protocol.PlayerState](readUntil(t, late, protocol.JSON, protocol.EventPlayersUpdate))
	if len(cached) != 2 {
		t.Errorf("Expected the cached two-player roster, got %d players", len(cached))
	}
}

// TestMsgPackSession checks the binary codec end to end
func TestMsgPackSession(t *testing.T) {
	arena := newTestArena(t, 8)

	conn, _, err := arena.dial(t, "codec=msgpack")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("Expected a binary frame, got type %d", kind)
	}
	frame, err := protocol.MsgPack.Decode(data)
	if err != nil || frame.Event != protocol.EventWelcome {
		t.Fatalf("Expected a msgpack welcome, got %v %v", frame.Event, err)
	}
	welcome, _ := protocol.DecodePayload[protocol.Welcome](frame)

	waitFor(t, "registration", func() bool { return arena.hub.ClientCount() == 1 })
	arena.engine.Step()

	state, err := protocol.DecodePayload[protocol.GameState](readUntil(t, conn, protocol.MsgPack, protocol.EventGameState))
	if err != nil {
		t.Fatal(err)
	}
	p, ok := state.Player(welcome.ID)
	if !ok || p.EquippedWeapon == nil || p.EquippedWeapon.WeaponType != "pistol" {
		t.Errorf("Unexpected msgpack state for own player: %+v", p)
	}
}

// TestHandshakeRejections covers the HTTP answers before an upgrade
func TestHandshakeRejections(t *testing.T) {
	arena := newTestArena(t, 1)

	_, resp, err := arena.dial(t, "codec=xml")
	if err == nil || resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown codec, got %v %v", resp, err)
	}

	conn, _, err := arena.dial(t, "name=first")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, resp, err = arena.dial(t, "name=second")
	if err == nil || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the arena is full, got %v %v", resp, err)
	}

	url := "ws" + strings.TrimPrefix(arena.server.URL, "http") + "/"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	conn.Close()
	waitFor(t, "unregister", func() bool { return arena.hub.ClientCount() == 0 })
	arena.engine.Step()

	_, resp, err = websocket.DefaultDialer.Dial(url, header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for a foreign origin, got %v %v", resp, err)
	}
}

// TestTotalCapCountsHandshakes verifies a session holds its slot before it
// registers, so the total cap cannot be overrun by a burst
func TestTotalCapCountsHandshakes(t *testing.T) {
	arena := newLimitedArena(t, 8, func(l *config.ResourceLimits) {
		l.MaxWSConnectionsTotal = 2
	})

	// One session mid-handshake: it holds a slot but is not a client yet
	if err := arena.hub.gate.Acquire("192.0.2.50"); err != nil {
		t.Fatal(err)
	}

	conn, _, err := arena.dial(t, "name=first")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, protocol.JSON, protocol.EventWelcome)

	_, resp, err := arena.dial(t, "name=second")
	if err == nil || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with the handshake slot held, got %v %v", resp, err)
	}

	arena.hub.gate.Release("192.0.2.50")
	second, _, err := arena.dial(t, "name=second")
	if err != nil {
		t.Fatalf("Released slot should admit a session: %v", err)
	}
	second.Close()
}

// Package client is the WebSocket transport for arena players. It feeds
// server updates to callbacks and sends player commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"arena/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	// HandshakeTimeout bounds dialing plus waiting for the welcome
	HandshakeTimeout = 10 * time.Second

	writeWait = 10 * time.Second
)

var ErrNoWelcome = errors.New("server did not send a welcome")

// Handlers receive decoded server messages on the Run goroutine
type Handlers struct {
	OnState  func(state *protocol.GameState)
	OnRoster func(players []protocol.PlayerState)
}

// Client is one player session
type Client struct {
	conn    *websocket.Conn
	codec   protocol.Codec
	welcome protocol.Welcome

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to serverURL (for example ws://localhost:3000/ws) and
// waits for the welcome message.
func Dial(ctx context.Context, serverURL, name string, codec protocol.Codec) (*Client, error) {
	if codec == nil {
		codec = protocol.JSON
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	if name != "" {
		q.Set("name", name)
	}
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &Client{conn: conn, codec: codec}
	if err := c.readWelcome(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readWelcome() error {
	c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	frame, err := c.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	if frame.Event != protocol.EventWelcome {
		return fmt.Errorf("%w: got %q", ErrNoWelcome, frame.Event)
	}
	w, err := protocol.DecodePayload[protocol.Welcome](frame)
	if err != nil {
		return err
	}
	c.welcome = w
	return nil
}

// Welcome returns what the server said on connect
func (c *Client) Welcome() protocol.Welcome {
	return c.welcome
}

// Run reads server messages until ctx is cancelled or the connection
// drops. It returns ctx.Err() after cancellation.
func (c *Client) Run(ctx context.Context, h Handlers) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		frame, err := c.codec.Decode(data)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}

		switch frame.Event {
		case protocol.EventGameState:
			if h.OnState == nil {
				continue
			}
			state, err := protocol.DecodePayload[protocol.GameState](frame)
			if err != nil {
				return err
			}
			h.OnState(&state)

		case protocol.EventPlayersUpdate:
			if h.OnRoster == nil {
				continue
			}
			roster, err := protocol.DecodePayload[[]protocol.PlayerState](frame)
			if err != nil {
				return err
			}
			h.OnRoster(roster)
		}
	}
}

// SendInput sends the current control state
func (c *Client) SendInput(in protocol.InputMessage) error {
	return c.send(protocol.EventInput, in)
}

// SendReload asks the server to reload the equipped weapon
func (c *Client) SendReload() error {
	return c.send(protocol.EventReload, nil)
}

// SendSkin asks for a different skin. Disallowed skins are ignored.
func (c *Client) SendSkin(skin string) error {
	return c.send(protocol.EventChangeSkin, skin)
}

// SendEquip asks the server to equip a carried weapon
func (c *Client) SendEquip(itemID string) error {
	return c.send(protocol.EventEquip, protocol.EquipMessage{ItemID: itemID})
}

func (c *Client) send(event string, data any) error {
	frame, err := c.codec.Encode(event, data)
	if err != nil {
		return err
	}

	msgType := websocket.TextMessage
	if c.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Close says goodbye and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

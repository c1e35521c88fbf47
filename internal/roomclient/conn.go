// Package roomclient connects to a collaboration room over websocket.
package roomclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"canvas-studio/internal/models"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	bufferSize   = 256
)

var ErrClosed = errors.New("room connection closed")

// Conn is one participant's connection to a room.
// Server messages arrive on Events, which is closed when the connection ends.
type Conn struct {
	ws     *websocket.Conn
	room   string
	send   chan []byte
	events chan models.RoomMessage

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// RoomURL builds ws(s)://host/ws/rooms/{room}?token=...
func RoomURL(baseURL, room, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid room server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/rooms/" + url.PathEscape(room)
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial joins room on the server at baseURL
func Dial(ctx context.Context, baseURL, room, token string) (*Conn, error) {
	target, err := RoomURL(baseURL, room, token)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to join room %s: %w", room, err)
	}

	c := &Conn{
		ws:     ws,
		room:   room,
		send:   make(chan []byte, bufferSize),
		events: make(chan models.RoomMessage, bufferSize),
		done:   make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Conn) Room() string { return c.room }

func (c *Conn) Events() <-chan models.RoomMessage { return c.events }

// SetStorage replaces the room's shared document
func (c *Conn) SetStorage(ctx context.Context, value string) error {
	return c.enqueue(ctx, models.RoomMessage{Type: models.MessageSetStorage, CanvasElements: &value})
}

// UpdatePresence publishes this participant's cursor and selection
func (c *Conn) UpdatePresence(ctx context.Context, p models.Presence) error {
	return c.enqueue(ctx, models.RoomMessage{Type: models.MessageUpdatePresence, Presence: &p})
}

func (c *Conn) enqueue(ctx context.Context, msg models.RoomMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Type, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the room and waits for the pumps to stop
func (c *Conn) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		close(c.events)
		c.wg.Done()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg models.RoomMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				log.Printf("⚠️  Dropping malformed room message: %v", err)
				continue
			}
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("⚠️  Room %s connection lost: %v", c.room, err)
				}
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.events <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.wg.Done()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("⚠️  Room %s write failed: %v", c.room, err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

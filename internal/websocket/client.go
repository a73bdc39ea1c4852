// internal/websocket/client.go

package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live staff connection. Deliveries go through a buffered
// channel; a full buffer means the recipient is too slow and the message is
// dropped, matching the best-effort delivery contract.
type Client struct {
	ID       string
	Identity models.Identity

	conn      *websocket.Conn
	send      chan Message
	closeOnce sync.Once
	log       *zap.Logger
}

// NewClient builds a client around an upgraded connection. Tests construct
// clients directly with a nil conn and read from Sent.
func NewClient(identity models.Identity, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		conn:     conn,
		send:     make(chan Message, sendBuffer),
		log:      log,
	}
}

// Deliver queues a message for the connection without blocking. It reports
// false when the client's buffer is full or closed; the caller treats that
// as a dropped best-effort delivery.
func (c *Client) Deliver(msg Message) (delivered bool) {
	defer func() {
		// Send on a closed channel during disconnect races is a drop,
		// not a crash.
		if recover() != nil {
			delivered = false
		}
	}()

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Sent exposes the outbound queue for tests and the write pump.
func (c *Client) Sent() <-chan Message {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// writePump pumps messages from the outbound queue to the websocket
// connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// readPump consumes join/leave commands from the client until the connection
// drops, then triggers exhaustive registry cleanup.
func (c *Client) readPump(registry *Registry) {
	defer func() {
		registry.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.log.Warn("malformed client command",
				zap.String("connection_id", c.ID),
				zap.Error(err),
			)
			continue
		}

		switch cmd.Action {
		case ActionJoinPatient:
			if err := registry.JoinPatient(c, cmd.PatientID); err != nil {
				c.Deliver(Message{Event: EventError, Payload: map[string]string{"message": err.Error()}})
			}
		case ActionLeavePatient:
			registry.LeavePatient(c, cmd.PatientID)
		default:
			c.log.Debug("unknown client action",
				zap.String("connection_id", c.ID),
				zap.String("action", cmd.Action),
			)
		}
	}
}

// ServeWs upgrades an authenticated request, registers the connection, and
// starts its pumps. The identity must already be verified by the caller.
func ServeWs(registry *Registry, identity models.Identity, w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(identity, conn, log)
	registry.Register(client)

	go client.writePump()
	go client.readPump(registry)
}

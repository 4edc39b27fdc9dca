package websockets

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
)

type MessageType string

const (
	TypeOrderPlaced MessageType = "order.placed"
	TypeOrderStatus MessageType = "order.status"
	TypeError       MessageType = "error"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one administrator connection. The feed is read only; clients
// may only send pings.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// control carries replies to the client's own messages. Unlike send it
	// is never closed.
	control chan []byte

	userID string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		control: make(chan []byte, 8),
		userID:  userID,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Websocket closed unexpectedly", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != TypePing {
			c.reply(TypeError)
			continue
		}
		c.reply(TypePong)
	}
}

// reply queues a control message without blocking the read loop.
func (c *Client) reply(messageType MessageType) {
	payload, _ := json.Marshal(Message{Type: messageType})
	select {
	case c.control <- payload:
	default:
	}
}

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

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case message := <-c.control:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// ServeWs attaches conn to the hub and starts its pumps. The connection is
// closed right away when the hub has stopped.
func ServeWs(hub *Hub, conn *websocket.Conn, userID string) {
	client := NewClient(hub, conn, userID)

	if !hub.attach(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

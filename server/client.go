package server

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 256 * 1024
)

type frame struct {
	messageType int
	data        []byte
}

// Client represents a single WebSocket connection.
type Client struct {
	ID    string
	Name  string
	Color string

	hub    *Hub
	conn   *websocket.Conn
	codec  Codec
	send   chan frame
	logger *zap.Logger

	// The session this client is currently in (nil if not joined).
	mu      sync.Mutex
	session *Session
}

var (
	adjectives = []string{"Red", "Blue", "Green", "Gold", "Silver", "Purple", "Orange", "Teal", "Coral", "Jade"}
	animals    = []string{"Fox", "Owl", "Bear", "Wolf", "Hawk", "Deer", "Lynx", "Crow", "Dove", "Seal"}
	colors     = []string{"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6", "#1abc9c", "#e67e22", "#00bcd4", "#ff5722", "#8bc34a"}
)

func newClient(hub *Hub, conn *websocket.Conn, codec Codec) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Name:   adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))],
		Color:  colors[rand.IntN(len(colors))],
		hub:    hub,
		conn:   conn,
		codec:  codec,
		send:   make(chan frame, 256),
		logger: hub.logger.With(zap.String("client", id), zap.String("codec", codec.Name())),
	}
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ReadPump reads messages from the WebSocket and routes them.
func (c *Client) ReadPump() {
	defer func() {
		if s := c.currentSession(); s != nil {
			s.leave <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case MsgJoin:
			if c.currentSession() != nil {
				c.sendError("already joined to a collection")
				continue
			}
			c.hub.joinCollection <- joinRequest{client: c, collectionID: msg.CollectionID}
		case MsgOp:
			s := c.currentSession()
			if s == nil {
				c.sendError("not joined to a collection")
				continue
			}
			s.incoming <- opMessage{client: c, msg: msg}
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
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

func (c *Client) sendMsg(msg ServerMessage) {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		c.logger.Error("encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- frame{messageType: c.codec.FrameType(), data: data}:
	default:
		// Client too slow, drop message.
		c.logger.Debug("dropping message for slow client", zap.String("type", msg.Type))
	}
}

func (c *Client) sendError(message string) {
	c.sendMsg(ServerMessage{Type: MsgError, Message: message})
}

func (c *Client) Info() ClientInfo {
	return ClientInfo{ID: c.ID, Name: c.Name, Color: c.Color}
}

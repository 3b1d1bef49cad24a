package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from a peer.
	maxMessageSize = 8192
)

// Connection wraps one websocket client. Outbound messages go through
// a buffered channel drained by the write pump; a full buffer drops
// the connection rather than blocking the table.
type Connection struct {
	ws     *websocket.Conn
	send   chan *Message
	coord  *Coordinator
	logger *log.Logger

	remoteIP string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu        sync.RWMutex
	identity  string
	handle    string
	tableID   string
	observing bool
}

func newConnection(ws *websocket.Conn, remoteIP string, coord *Coordinator, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ws:       ws,
		send:     make(chan *Message, 256),
		coord:    coord,
		logger:   logger.WithPrefix("conn").With("remote", remoteIP),
		remoteIP: remoteIP,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		_ = c.ws.Close()
	})
}

// sendMessage enqueues a message. A full send buffer closes the
// connection; a slow client must not hold up the fan-out.
func (c *Connection) sendMessage(msg *Message) {
	defer func() {
		// The send channel races with close during teardown.
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "recover", r)
		}
	}()

	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.close()
	}
}

func (c *Connection) sendPayload(messageType MessageType, data any) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("marshal outbound message", "type", messageType, "error", err)
		return
	}
	c.sendMessage(msg)
}

func (c *Connection) sendError(kind, message string) {
	c.sendPayload(MessageTypeError, ErrorData{Kind: kind, Message: message})
}

func (c *Connection) setIdentity(identity, handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.handle = handle
}

func (c *Connection) getIdentity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Connection) getHandle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

func (c *Connection) setTable(tableID string, observing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
	c.observing = observing
}

func (c *Connection) getTable() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID, c.observing
}

func (c *Connection) readPump() {
	defer func() {
		c.coord.connectionClosed(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage decodes and routes one inbound frame. Malformed
// payloads earn an error reply and an abuse-log row; game state is
// never touched by a bad frame.
func (c *Connection) handleMessage(msg *Message) {
	decode := func(v any) bool {
		if err := json.Unmarshal(msg.Data, v); err != nil {
			c.sendError("invalid-argument", "malformed payload for "+string(msg.Type))
			c.coord.reportAbuse(c, "malformed-payload", string(msg.Type))
			return false
		}
		return true
	}

	switch msg.Type {
	case MessageTypeJoinTable:
		var data JoinTableData
		if decode(&data) {
			c.coord.JoinTable(c, data)
		}
	case MessageTypeObserveTable:
		var data ObserveTableData
		if decode(&data) {
			c.coord.ObserveTable(c, data)
		}
	case MessageTypeListTables:
		c.coord.ListTables(c)
	case MessageTypeAction:
		var data ActionData
		if decode(&data) {
			c.coord.HandleAction(c, data)
		}
	case MessageTypeSitOut:
		var data SitOutData
		if decode(&data) {
			c.coord.HandleSitOut(c, data)
		}
	case MessageTypeSitBackIn:
		var data SitBackInData
		if decode(&data) {
			c.coord.HandleSitBackIn(c, data)
		}
	case MessageTypeRebuy:
		var data RebuyData
		if decode(&data) {
			c.coord.HandleRebuy(c, data)
		}
	case MessageTypeLeaveTable:
		var data LeaveTableData
		if decode(&data) {
			c.coord.LeaveTable(c, data)
		}
	case MessageTypeChat:
		var data ChatData
		if decode(&data) {
			c.coord.HandleChat(c, data)
		}
	default:
		c.sendError("invalid-argument", "unknown message type "+string(msg.Type))
		c.coord.reportAbuse(c, "unknown-message-type", string(msg.Type))
	}
}

package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// Feed streams every match event to site-wide subscribers such as the home
// page. It is receive-only; incoming frames just keep the connection alive.
type Feed struct {
	clients map[*Client]bool
	log     *log.Helper
	mu      sync.RWMutex
}

func NewFeed(logger *log.Helper) *Feed {
	return &Feed{
		clients: make(map[*Client]bool),
		log:     logger,
	}
}

func (f *Feed) HandleConnection(conn *websocket.Conn, userID int64) {
	client := newClient(conn, userID)

	f.mu.Lock()
	f.clients[client] = true
	f.mu.Unlock()

	go f.writePump(client)
	go f.readPump(client)
}

func (f *Feed) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		f.log.Errorf("failed to marshal feed message: %v", err)
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for client := range f.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, skip
		}
	}
}

func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) readPump(c *Client) {
	defer func() {
		f.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.log.Warnf("feed websocket error: %v", err)
			}
			return
		}
	}
}

func (f *Feed) writePump(c *Client) {
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

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *Feed) removeClient(c *Client) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[c]; ok {
		close(c.send)
		delete(f.clients, c)
	}
}

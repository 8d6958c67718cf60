package ws

import (
	"encoding/json"
	"sync"
	"time"

	"elclasico/league"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Hub keeps one room per watched match and the site-wide feed. It
// implements league.Publisher.
type Hub struct {
	rooms map[int64]*Room
	feed  *Feed
	log   *log.Helper
	mu    sync.Mutex
}

var _ league.Publisher = (*Hub)(nil)

func NewHub(logger log.Logger) *Hub {
	helper := log.NewHelper(log.With(logger, "module", "ws"))
	return &Hub{
		rooms: make(map[int64]*Room),
		feed:  NewFeed(helper),
		log:   helper,
	}
}

func (h *Hub) Feed() *Feed {
	return h.feed
}

// Room returns the room of matchID, or nil when nobody is watching it.
func (h *Hub) Room(matchID int64) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[matchID]
}

func (h *Hub) join(matchID int64, client *Client) (*Room, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[matchID]
	if !exists {
		room = NewRoom(matchID, h.log)
		h.rooms[matchID] = room
	}
	return room, room.AddClient(client)
}

func (h *Hub) leave(room *Room, client *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	left := room.RemoveClient(client)
	if left == 0 && h.rooms[room.matchID] == room {
		delete(h.rooms, room.matchID)
	}
	return left
}

// Publish sends e to the match's viewers and to the feed.
func (h *Hub) Publish(e *league.Event) {
	msg := OutgoingMessage{Type: e.Type, MatchID: e.MatchID, Payload: e.Payload}
	if room := h.Room(e.MatchID); room != nil {
		room.Broadcast(msg)
	}
	h.feed.Broadcast(msg)
}

func (h *Hub) HandleConnection(conn *websocket.Conn, matchID, userID int64) {
	client := newClient(conn, userID)

	room, count := h.join(matchID, client)
	room.Broadcast(OutgoingMessage{Type: MessageViewers, MatchID: matchID, Payload: ViewersPayload{Count: count}})

	go h.writePump(client)
	go h.readPump(client, room)
}

func (h *Hub) readPump(client *Client, room *Room) {
	defer func() {
		left := h.leave(room, client)
		client.conn.Close()
		if left > 0 {
			room.Broadcast(OutgoingMessage{Type: MessageViewers, MatchID: room.matchID, Payload: ViewersPayload{Count: left}})
		}
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warnf("websocket error in match %d: %v", room.matchID, err)
			}
			break
		}

		var inMsg IncomingMessage
		if err := json.Unmarshal(message, &inMsg); err != nil {
			h.reply(client, OutgoingMessage{Type: MessageError, Payload: map[string]string{"message": "invalid message"}})
			continue
		}
		h.handleMessage(client, room, &inMsg)
	}
}

func (h *Hub) handleMessage(client *Client, room *Room, msg *IncomingMessage) {
	switch msg.Type {
	case MessagePing:
		h.reply(client, OutgoingMessage{Type: MessagePong, MatchID: room.matchID, Payload: nil})
	default:
		h.log.Debugf("unknown message type %q from client %d", msg.Type, client.userID)
		h.reply(client, OutgoingMessage{Type: MessageError, Payload: map[string]string{"message": "unknown message type"}})
	}
}

// reply queues msg for one client, dropping it if the buffer is full.
func (h *Hub) reply(client *Client, msg OutgoingMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to current websocket message
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

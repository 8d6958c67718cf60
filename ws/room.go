package ws

import (
	"encoding/json"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

type Client struct {
	conn   *websocket.Conn
	userID int64
	send   chan []byte
}

func newClient(conn *websocket.Conn, userID int64) *Client {
	return &Client{conn: conn, userID: userID, send: make(chan []byte, sendBufferSize)}
}

// Room holds the viewers of one match. A userID of 0 is an anonymous viewer.
type Room struct {
	matchID int64
	clients map[*Client]bool
	log     *log.Helper
	mu      sync.RWMutex
}

func NewRoom(matchID int64, logger *log.Helper) *Room {
	return &Room{
		matchID: matchID,
		clients: make(map[*Client]bool),
		log:     logger,
	}
}

func (r *Room) AddClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client] = true
	return len(r.clients)
}

// RemoveClient drops client and closes its send channel. It returns the
// number of clients left.
func (r *Room) RemoveClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		close(client.send)
	}
	return len(r.clients)
}

func (r *Room) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		r.log.Errorf("failed to marshal message for match %d: %v", r.matchID, err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		select {
		case client.send <- data:
		default:
			r.log.Warnf("client %d send buffer full in match %d", client.userID, r.matchID)
		}
	}
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

package hub

import (
	"encoding/json"
	"sync"

	"github.com/lucashu/marketchat/pkg/log"
)

// Hub is the realtime gateway's dispatch core. It owns every live client,
// the room membership maps (room key = conversation id), and the presence
// registry (user id -> live connection). Presence is process-scoped and
// ephemeral: installed when a connection authenticates, removed when it
// closes, never persisted.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // conversationID -> clientID -> client
	presence   map[string]*Client            // userID -> live connection (last writer wins)
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEnvelope
	mu         sync.RWMutex
}

type roomEnvelope struct {
	RoomID  string
	Payload []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		presence:   make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEnvelope, 256),
	}
}

// Run is the event-dispatch loop. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				h.dropPresenceLocked(client)
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case env := <-h.broadcast:
			h.mu.RLock()
			if members, ok := h.rooms[env.RoomID]; ok {
				for _, client := range members {
					select {
					case client.Send <- env.Payload:
					default:
						// Slow consumer: evict rather than stall the loop.
						go h.Unregister(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SetPresence installs the presence entry for an authenticated connection.
// A second connection for the same user simply replaces the first; there is
// no multi-device fan-out guarantee.
func (h *Hub) SetPresence(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presence[userID] = client
}

// Presence returns the live connection currently representing a user.
func (h *Hub) Presence(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.presence[userID]
	return client, ok
}

// dropPresenceLocked removes the presence entry only if it still points at
// this client: a newer connection for the same user must survive the old
// one's disconnect.
func (h *Hub) dropPresenceLocked(client *Client) {
	userID := client.State.UserID()
	if userID == "" {
		return
	}
	if current, ok := h.presence[userID]; ok && current == client {
		delete(h.presence, userID)
	}
}

// JoinRoom adds the client to a conversation's broadcast group. The room key
// is accepted as-is; send-time authorization is the participant check.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	h.mu.Unlock()

	client.State.JoinRoom(roomID)
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldConversationID, roomID).Msg("client joined room")
}

// LeaveRoom removes one room membership.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	client.State.LeaveRoom(roomID)
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldConversationID, roomID).Msg("client left room")
}

// BroadcastToRoom fans an event out to every connection joined to the room.
// Fire and forget: no acknowledgment, no retry, no delivery state.
func (h *Hub) BroadcastToRoom(roomID string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.broadcast <- &roomEnvelope{RoomID: roomID, Payload: data}
	return nil
}

// RoomClientCount reports how many connections are joined to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

package hub

import (
	"sync"
	"time"
)

// ConnState is the per-connection lifecycle state: the identity bound at
// handshake time and the set of conversation rooms the connection joined.
type ConnState struct {
	userID        string
	username      string
	avatarURL     string
	authenticated bool
	rooms         map[string]struct{}
	connectedAt   time.Time
	mu            sync.RWMutex
}

func NewConnState() *ConnState {
	return &ConnState{
		rooms:       make(map[string]struct{}),
		connectedAt: time.Now(),
	}
}

// Authenticate tags the connection with its resolved identity.
func (s *ConnState) Authenticate(userID, username, avatarURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.username = username
	s.avatarURL = avatarURL
	s.authenticated = true
}

func (s *ConnState) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *ConnState) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *ConnState) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// JoinRoom records room membership on the connection side.
func (s *ConnState) JoinRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = struct{}{}
}

// LeaveRoom drops one room membership.
func (s *ConnState) LeaveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *ConnState) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns a snapshot of the joined room set.
func (s *ConnState) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

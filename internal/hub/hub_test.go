package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucashu/marketchat/internal/config"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	return h
}

func newTestClient(h *Hub, id string) *Client {
	return NewClient(id, h, nil, testWSConfig())
}

func clientCount(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := newRunningHub(t)
	client := newTestClient(h, "c1")

	h.Register(client)
	require.Eventually(t, func() bool { return clientCount(h) == 1 }, time.Second, 10*time.Millisecond)

	h.Unregister(client)
	require.Eventually(t, func() bool { return clientCount(h) == 0 }, time.Second, 10*time.Millisecond)

	// Unregister closes the send channel.
	_, open := <-client.Send
	assert.False(t, open)
}

func TestHub_BroadcastReachesJoinedOnly(t *testing.T) {
	h := newRunningHub(t)

	joined := newTestClient(h, "c1")
	bystander := newTestClient(h, "c2")
	h.Register(joined)
	h.Register(bystander)
	require.Eventually(t, func() bool { return clientCount(h) == 2 }, time.Second, 10*time.Millisecond)

	h.JoinRoom(joined, "conv-1")

	require.NoError(t, h.BroadcastToRoom("conv-1", map[string]string{"type": "message:new"}))

	select {
	case payload := <-joined.Send:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "message:new", decoded["type"])
	case <-time.After(time.Second):
		t.Fatal("joined client never received the broadcast")
	}

	select {
	case <-bystander.Send:
		t.Fatal("bystander received a broadcast for a room it never joined")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_LeaveRoomStopsDelivery(t *testing.T) {
	h := newRunningHub(t)

	client := newTestClient(h, "c1")
	h.Register(client)
	require.Eventually(t, func() bool { return clientCount(h) == 1 }, time.Second, 10*time.Millisecond)

	h.JoinRoom(client, "conv-1")
	assert.Equal(t, 1, h.RoomClientCount("conv-1"))
	assert.True(t, client.State.InRoom("conv-1"))

	h.LeaveRoom(client, "conv-1")
	assert.Equal(t, 0, h.RoomClientCount("conv-1"))
	assert.False(t, client.State.InRoom("conv-1"))

	require.NoError(t, h.BroadcastToRoom("conv-1", map[string]string{"type": "message:new"}))

	select {
	case <-client.Send:
		t.Fatal("client received a broadcast after leaving the room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PresenceLastWriterWins(t *testing.T) {
	h := newRunningHub(t)

	first := newTestClient(h, "c1")
	second := newTestClient(h, "c2")
	h.Register(first)
	h.Register(second)
	require.Eventually(t, func() bool { return clientCount(h) == 2 }, time.Second, 10*time.Millisecond)

	first.State.Authenticate("u1", "alice", "")
	second.State.Authenticate("u1", "alice", "")

	h.SetPresence("u1", first)
	h.SetPresence("u1", second)

	current, ok := h.Presence("u1")
	require.True(t, ok)
	assert.Same(t, second, current)

	// The stale connection closing must not evict the newer one.
	h.Unregister(first)
	require.Eventually(t, func() bool { return clientCount(h) == 1 }, time.Second, 10*time.Millisecond)

	current, ok = h.Presence("u1")
	require.True(t, ok)
	assert.Same(t, second, current)
}

func TestHub_UnregisterDropsPresenceAndRooms(t *testing.T) {
	h := newRunningHub(t)

	client := newTestClient(h, "c1")
	h.Register(client)
	require.Eventually(t, func() bool { return clientCount(h) == 1 }, time.Second, 10*time.Millisecond)

	client.State.Authenticate("u1", "alice", "")
	h.SetPresence("u1", client)
	h.JoinRoom(client, "conv-1")

	h.Unregister(client)
	require.Eventually(t, func() bool { return clientCount(h) == 0 }, time.Second, 10*time.Millisecond)

	_, ok := h.Presence("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, h.RoomClientCount("conv-1"))
}

func TestConnState_Lifecycle(t *testing.T) {
	state := NewConnState()

	assert.False(t, state.IsAuthenticated())
	assert.Empty(t, state.UserID())

	state.Authenticate("u1", "alice", "https://cdn.example.com/a.png")
	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, "u1", state.UserID())
	assert.Equal(t, "alice", state.Username())

	state.JoinRoom("conv-1")
	state.JoinRoom("conv-2")
	assert.True(t, state.InRoom("conv-1"))
	assert.Len(t, state.Rooms(), 2)

	state.LeaveRoom("conv-1")
	assert.False(t, state.InRoom("conv-1"))
	assert.True(t, state.InRoom("conv-2"))
}

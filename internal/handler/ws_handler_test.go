package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucashu/marketchat/internal/config"
	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/hub"
)

func newWSServer(t *testing.T, svc *stubChatService) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	wsHub := hub.NewHub()
	go wsHub.Run()

	wsCfg := config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}

	r := gin.New()
	r.GET("/ws", NewWSHandler(wsHub, svc, wsCfg).HandleWebSocket)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return server, conn
}

func TestWebSocket_PingPong(t *testing.T) {
	_, conn := newWSServer(t, &stubChatService{})

	require.NoError(t, conn.WriteJSON(gin.H{"type": domain.EventPing}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var pong domain.PongEvent
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, domain.EventPong, pong.Type)
}

func TestWebSocket_EventDispatch(t *testing.T) {
	var (
		mu      sync.Mutex
		gotConv string
		gotBody string
	)
	svc := &stubChatService{
		handleSend: func(ctx context.Context, client *hub.Client, conversationID, content string) {
			mu.Lock()
			defer mu.Unlock()
			gotConv = conversationID
			gotBody = content
		},
	}
	_, conn := newWSServer(t, svc)

	require.NoError(t, conn.WriteJSON(gin.H{
		"type":            domain.EventSend,
		"conversation_id": "c1",
		"content":         "Hello",
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotConv == "c1" && gotBody == "Hello"
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_FailedHandshakeClosesConnection(t *testing.T) {
	svc := &stubChatService{
		handleAuth: func(ctx context.Context, client *hub.Client, token string) error {
			return errors.New("handshake failed")
		},
	}
	_, conn := newWSServer(t, svc)

	require.NoError(t, conn.WriteJSON(gin.H{"type": domain.EventAuth, "token": "bad"}))

	// No structured event: the transport just closes.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocket_UnknownEventIgnored(t *testing.T) {
	_, conn := newWSServer(t, &stubChatService{})

	require.NoError(t, conn.WriteJSON(gin.H{"type": "no-such-event"}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The connection survives both; a ping still answers.
	require.NoError(t, conn.WriteJSON(gin.H{"type": domain.EventPing}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var pong domain.PongEvent
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, domain.EventPong, pong.Type)
}

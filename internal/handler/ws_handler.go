package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lucashu/marketchat/internal/config"
	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/hub"
	"github.com/lucashu/marketchat/internal/service"
	"github.com/lucashu/marketchat/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler accepts live connections and routes tagged events to the chat
// service. Every inbound frame is decoded into its typed variant at this
// boundary before any dispatch.
type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request and starts the connection's pumps.
// The connection starts unauthenticated; the first accepted event must be
// the auth handshake.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleEvent)
}

func (h *WSHandler) handleEvent(client *hub.Client, raw []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		// Unparseable frames are dropped; there is no event to answer.
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.EventAuth:
		var evt domain.AuthEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			client.Close()
			return
		}
		if err := h.service.HandleAuth(ctx, client, evt.Token); err != nil {
			l := log.L()
			l.Debug().Err(err).Str(log.FieldClientID, client.ID).Msg("handshake rejected")
			client.Close()
		}

	case domain.EventJoin:
		var evt domain.JoinEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		h.service.HandleJoin(ctx, client, evt.ConversationID)

	case domain.EventLeave:
		var evt domain.LeaveEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		h.service.HandleLeave(ctx, client, evt.ConversationID)

	case domain.EventSend:
		var evt domain.SendEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		h.service.HandleSend(ctx, client, evt.ConversationID, evt.Content)

	case domain.EventPing:
		client.SendEvent(&domain.PongEvent{Type: domain.EventPong})

	default:
		l := log.L()
		l.Debug().Str("event_type", base.Type).Str(log.FieldClientID, client.ID).Msg("unknown event type dropped")
	}
}

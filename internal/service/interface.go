package service

import (
	"context"

	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/hub"
)

// Gateway is the realtime dispatch surface the service needs: room
// membership, presence, and fan-out. The hub implements it; tests record it.
type Gateway interface {
	JoinRoom(client *hub.Client, roomID string)
	LeaveRoom(client *hub.Client, roomID string)
	SetPresence(userID string, client *hub.Client)
	BroadcastToRoom(roomID string, event interface{}) error
}

// ChatService carries both faces of the messaging subsystem: the live
// channel event handlers and the REST facade. Both paths share one
// validate -> persist -> summarize -> broadcast pipeline.
type ChatService interface {
	// Live channel
	HandleAuth(ctx context.Context, client *hub.Client, token string) error
	HandleJoin(ctx context.Context, client *hub.Client, conversationID string)
	HandleLeave(ctx context.Context, client *hub.Client, conversationID string)
	HandleSend(ctx context.Context, client *hub.Client, conversationID, content string)

	// REST facade
	CreateConversation(ctx context.Context, actorID string, req *domain.CreateConversationRequest) (*domain.ConversationResponse, bool, error)
	ListConversations(ctx context.Context, userID string, page, pageSize int) (*domain.ListConversationsResponse, error)
	ListMessages(ctx context.Context, actorID, conversationID string, page, pageSize int) (*domain.ListMessagesResponse, error)
	SendMessage(ctx context.Context, actorID, conversationID, content string) (*domain.MessageResponse, error)
}

package domain

import "time"

// Live-channel event names from the client.
const (
	EventAuth    = "auth"
	EventJoin    = "conversation:join"
	EventLeave   = "conversation:leave"
	EventSend    = "message:send"
	EventPing    = "ping"
)

// Live-channel event names to the client.
const (
	EventReady              = "connection:ready"
	EventMessageNew         = "message:new"
	EventConversationUpdate = "conversation:update"
	EventMessageError       = "message:error"
	EventPong               = "pong"
)

// BaseEvent carries only the discriminator; the full payload is re-decoded
// into the matching variant once the type is known.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type AuthEvent struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type JoinEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type LeaveEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type SendEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// Server -> Client events

type ReadyEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

func NewReadyEvent(userID string) *ReadyEvent {
	return &ReadyEvent{Type: EventReady, UserID: userID}
}

type MessageNewEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Message        MessageResponse `json:"message"`
}

func NewMessageNewEvent(msg MessageResponse) *MessageNewEvent {
	return &MessageNewEvent{
		Type:           EventMessageNew,
		ConversationID: msg.ConversationID,
		Message:        msg,
	}
}

type ConversationUpdateEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	LastMessage    LastMessage `json:"last_message"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func NewConversationUpdateEvent(conversationID string, last LastMessage, updatedAt time.Time) *ConversationUpdateEvent {
	return &ConversationUpdateEvent{
		Type:           EventConversationUpdate,
		ConversationID: conversationID,
		LastMessage:    last,
		UpdatedAt:      updatedAt,
	}
}

// MessageErrorEvent is delivered to the sender only, never broadcast.
type MessageErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewMessageErrorEvent(message string) *MessageErrorEvent {
	return &MessageErrorEvent{Type: EventMessageError, Message: message}
}

type PongEvent struct {
	Type string `json:"type"`
}

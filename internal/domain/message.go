package domain

import (
	"time"

	"github.com/lucashu/marketchat/pkg/database"
)

// Message is one immutable entry in a conversation. ReadBy starts as
// {sender}; nothing here ever mutates a message after creation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	ReadBy         []string  `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageModel is the GORM model for the messages table. Seq is a
// monotonically increasing insertion counter used only to break created_at
// ties, so history order is stable.
type MessageModel struct {
	ID             string                `gorm:"type:varchar(36);primaryKey"`
	Seq            uint64                `gorm:"autoIncrement;uniqueIndex"`
	ConversationID string                `gorm:"type:varchar(36);index;not null"`
	SenderID       string                `gorm:"type:varchar(36);not null"`
	Content        string                `gorm:"type:text;not null"`
	ReadBy         database.StringArray  `gorm:"type:text"`
	CreatedAt      time.Time             `gorm:"autoCreateTime;index"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		ReadBy:         []string(m.ReadBy),
		CreatedAt:      m.CreatedAt,
	}
}

func MessageToModel(m *Message) *MessageModel {
	return &MessageModel{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		ReadBy:         database.StringArray(m.ReadBy),
		CreatedAt:      m.CreatedAt,
	}
}

// SendMessageRequest is the REST body for posting a message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageResponse is a message in API responses and live events, with the
// sender identity expanded.
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         UserRef   `json:"sender"`
	Content        string    `json:"content"`
	ReadBy         []string  `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToResponse expands the sender reference. The sender may be nil when the
// account no longer resolves; the bare ID is still returned.
func (m *Message) ToResponse(sender *User) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         UserRef{ID: m.SenderID},
		Content:        m.Content,
		ReadBy:         m.ReadBy,
		CreatedAt:      m.CreatedAt,
	}
	if sender != nil {
		resp.Sender = sender.ToRef()
	}
	return resp
}

// ListMessagesResponse is paginated conversation history, oldest first.
type ListMessagesResponse struct {
	Messages   []MessageResponse `json:"messages"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

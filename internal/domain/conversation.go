package domain

import (
	"strings"
	"time"
)

// Conversation is a two-party thread, optionally tied to a marketplace
// listing, carrying a denormalized snapshot of its most recent message for
// fast inbox rendering.
type Conversation struct {
	ID           string       `json:"id"`
	ParticipantA string       `json:"participant_a"`
	ParticipantB string       `json:"participant_b"`
	ListingID    string       `json:"listing_id,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LastMessage is the denormalized summary mirrored from the newest Message.
type LastMessage struct {
	Content  string    `json:"content"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantA || userID == c.ParticipantB
}

// PairKey builds the order-independent lookup key for a participant pair.
// A unique index on it enforces at most one conversation per pair.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}

// ConversationModel is the GORM model for the conversations table.
type ConversationModel struct {
	ID                  string `gorm:"type:varchar(36);primaryKey"`
	ParticipantA        string `gorm:"type:varchar(36);index;not null"`
	ParticipantB        string `gorm:"type:varchar(36);index;not null"`
	PairKey             string `gorm:"type:varchar(73);uniqueIndex;not null"`
	ListingID           string `gorm:"type:varchar(36)"`
	LastMessageContent  string `gorm:"type:text"`
	LastMessageSenderID string `gorm:"type:varchar(36)"`
	LastMessageAt       *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"index"`
}

func (ConversationModel) TableName() string {
	return "conversations"
}

func (m *ConversationModel) ToDomain() *Conversation {
	conv := &Conversation{
		ID:           m.ID,
		ParticipantA: m.ParticipantA,
		ParticipantB: m.ParticipantB,
		ListingID:    m.ListingID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.LastMessageAt != nil {
		conv.LastMessage = &LastMessage{
			Content:  m.LastMessageContent,
			SenderID: m.LastMessageSenderID,
			SentAt:   *m.LastMessageAt,
		}
	}
	return conv
}

func ConversationToModel(c *Conversation) *ConversationModel {
	model := &ConversationModel{
		ID:           c.ID,
		ParticipantA: c.ParticipantA,
		ParticipantB: c.ParticipantB,
		PairKey:      PairKey(c.ParticipantA, c.ParticipantB),
		ListingID:    c.ListingID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.LastMessage != nil {
		model.LastMessageContent = c.LastMessage.Content
		model.LastMessageSenderID = c.LastMessage.SenderID
		at := c.LastMessage.SentAt
		model.LastMessageAt = &at
	}
	return model
}

// CreateConversationRequest opens (or returns) the thread between the caller
// and another user, optionally about a listing.
type CreateConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	PostID        string `json:"post_id"`
}

// ConversationResponse is a conversation in API responses.
type ConversationResponse struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	ListingID    string       `json:"listing_id,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		Participants: []string{c.ParticipantA, c.ParticipantB},
		ListingID:    c.ListingID,
		LastMessage:  c.LastMessage,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ListConversationsResponse is the paginated inbox listing, newest first.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int                    `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
	TotalPages    int                    `json:"total_pages"`
}

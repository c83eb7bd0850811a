package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lucashu/marketchat/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// UserRepository resolves user records. Read-only: accounts are owned by
// another service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// ConversationRepository owns conversation records and their denormalized
// last-message summaries. Membership authorization is NOT enforced here;
// callers check the acting identity against the participant pair.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindByParticipants(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	AttachListing(ctx context.Context, id, listingID string) error
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int, error)
	RecordLastMessage(ctx context.Context, id, content, senderID string, at time.Time) error
}

// MessageRepository owns ordered message records.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message) error
	ListForConversation(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int, error)
}

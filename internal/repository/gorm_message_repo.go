package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append persists a new message. The conversation must already exist;
// content validation happens in the service layer where the acting identity
// is known.
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Where("id = ?", msg.ConversationID).Count(&count).Error; err != nil {
		l.Error().Err(err).Msg("failed to check conversation existence")
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	model := domain.MessageToModel(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, msg.ConversationID).Msg("failed to append message")
		return err
	}

	msg.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldMessageID, msg.ID).Str(log.FieldConversationID, msg.ConversationID).Msg("message appended")
	return nil
}

// ListForConversation retrieves a conversation's messages with pagination,
// oldest first. Ties on created_at fall back to insertion order.
func (r *GormMessageRepository) ListForConversation(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count messages")
		return nil, 0, err
	}

	var models []domain.MessageModel
	if err := query.Order("created_at ASC, seq ASC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to list messages from db")
		return nil, 0, err
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}

	return messages, int(total), nil
}

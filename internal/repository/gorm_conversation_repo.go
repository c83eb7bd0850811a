package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/pkg/log"
)

// GormConversationRepository implements ConversationRepository using GORM.
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// Create inserts a new conversation. The unique index on pair_key backs the
// lookup-before-create flow: a lost race surfaces as a constraint error.
func (r *GormConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	l := log.Ctx(ctx)

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	model := domain.ConversationToModel(conv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create conversation in db")
		return err
	}

	l.Debug().Str(log.FieldConversationID, conv.ID).Msg("conversation created in db")
	return nil
}

// GetByID retrieves a conversation by ID.
func (r *GormConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var model domain.ConversationModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldConversationID, id).Msg("failed to get conversation by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// FindByParticipants looks up the conversation for an unordered participant
// pair via its pair key.
func (r *GormConversationRepository) FindByParticipants(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	var model domain.ConversationModel
	result := r.db.WithContext(ctx).First(&model, "pair_key = ?", domain.PairKey(userA, userB))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Msg("failed to find conversation by participants")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// AttachListing sets the related listing only when none is set yet; a
// conversation that already references a listing is left untouched.
func (r *GormConversationRepository) AttachListing(ctx context.Context, id, listingID string) error {
	result := r.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Where("id = ? AND (listing_id IS NULL OR listing_id = '')", id).
		Update("listing_id", listingID)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldConversationID, id).Msg("failed to attach listing")
		return result.Error
	}
	return nil
}

// ListForUser retrieves the user's conversations with pagination, most
// recently updated first.
func (r *GormConversationRepository) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count conversations")
		return nil, 0, err
	}

	var models []domain.ConversationModel
	if err := query.Order("updated_at DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list conversations from db")
		return nil, 0, err
	}

	conversations := make([]domain.Conversation, len(models))
	for i, model := range models {
		conversations[i] = *model.ToDomain()
	}

	return conversations, int(total), nil
}

// RecordLastMessage overwrites the denormalized summary and bumps
// updated_at. Single-row update: per-document atomic, last write wins.
func (r *GormConversationRepository) RecordLastMessage(ctx context.Context, id, content, senderID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_content":   content,
			"last_message_sender_id": senderID,
			"last_message_at":        at,
			"updated_at":             at,
		})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldConversationID, id).Msg("failed to record last message")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

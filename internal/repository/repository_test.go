package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/pkg/database"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.MessageModel{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, username string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.UserModel{
		ID:       id,
		Username: username,
		Email:    username + "@example.com",
	}).Error)
}

func seedConversation(t *testing.T, db *gorm.DB, repo *GormConversationRepository, a, b string) *domain.Conversation {
	t.Helper()
	conv := &domain.Conversation{ParticipantA: a, ParticipantB: b}
	require.NoError(t, repo.Create(context.Background(), conv))
	return conv
}

func TestUserRepo_GetByID(t *testing.T) {
	db := testDB(t)
	repo := NewGormUserRepository(db)
	seedUser(t, db, "u1", "alice")

	user, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationRepo_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)

	conv := seedConversation(t, db, repo, "u1", "u2")
	require.NotEmpty(t, conv.ID)

	got, err := repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ParticipantA)
	assert.Equal(t, "u2", got.ParticipantB)
	assert.Nil(t, got.LastMessage)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepo_FindByParticipants_BothOrders(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)
	conv := seedConversation(t, db, repo, "u1", "u2")

	found, err := repo.FindByParticipants(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	found, err = repo.FindByParticipants(context.Background(), "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = repo.FindByParticipants(context.Background(), "u1", "u3")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepo_PairKeyUnique(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)
	seedConversation(t, db, repo, "u1", "u2")

	// A second thread for the same pair, in either order, violates the index.
	err := repo.Create(context.Background(), &domain.Conversation{ParticipantA: "u2", ParticipantB: "u1"})
	assert.Error(t, err)
}

func TestConversationRepo_AttachListing(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)
	conv := seedConversation(t, db, repo, "u1", "u2")

	require.NoError(t, repo.AttachListing(context.Background(), conv.ID, "p1"))

	got, err := repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ListingID)

	// Attaching again never overwrites.
	require.NoError(t, repo.AttachListing(context.Background(), conv.ID, "p2"))
	got, err = repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ListingID)
}

func TestConversationRepo_RecordLastMessage(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)
	conv := seedConversation(t, db, repo, "u1", "u2")

	at := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, repo.RecordLastMessage(context.Background(), conv.ID, "Hello", "u1", at))

	got, err := repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "Hello", got.LastMessage.Content)
	assert.Equal(t, "u1", got.LastMessage.SenderID)
	assert.Equal(t, at.Unix(), got.UpdatedAt.Unix())

	err = repo.RecordLastMessage(context.Background(), "nope", "Hello", "u1", at)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepo_ListForUser(t *testing.T) {
	db := testDB(t)
	repo := NewGormConversationRepository(db)
	ctx := context.Background()

	first := seedConversation(t, db, repo, "u1", "u2")
	second := seedConversation(t, db, repo, "u1", "u3")
	seedConversation(t, db, repo, "u4", "u5")

	// Bump the first thread so it sorts newest.
	require.NoError(t, repo.RecordLastMessage(ctx, first.ID, "Hello", "u1", time.Now().UTC().Add(time.Hour)))

	conversations, total, err := repo.ListForUser(ctx, "u1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, conversations, 2)
	assert.Equal(t, first.ID, conversations[0].ID)
	assert.Equal(t, second.ID, conversations[1].ID)

	// Pagination slices the ordered listing.
	conversations, total, err = repo.ListForUser(ctx, "u1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, conversations, 1)
	assert.Equal(t, second.ID, conversations[0].ID)

	conversations, total, err = repo.ListForUser(ctx, "u6", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, conversations)
}

func TestMessageRepo_AppendAndList(t *testing.T) {
	db := testDB(t)
	convRepo := NewGormConversationRepository(db)
	msgRepo := NewGormMessageRepository(db)
	ctx := context.Background()

	conv := seedConversation(t, db, convRepo, "u1", "u2")

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		msg := &domain.Message{
			ConversationID: conv.ID,
			SenderID:       "u1",
			Content:        fmt.Sprintf("message %d", i),
			ReadBy:         []string{"u1"},
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, msgRepo.Append(ctx, msg))
		require.NotEmpty(t, msg.ID)
	}

	messages, total, err := msgRepo.ListForConversation(ctx, conv.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, messages, 3)

	// Oldest first.
	assert.Equal(t, "message 0", messages[0].Content)
	assert.Equal(t, "message 2", messages[2].Content)
	assert.Equal(t, []string{"u1"}, messages[0].ReadBy)
}

func TestMessageRepo_AppendRequiresConversation(t *testing.T) {
	db := testDB(t)
	msgRepo := NewGormMessageRepository(db)

	err := msgRepo.Append(context.Background(), &domain.Message{
		ConversationID: "nope",
		SenderID:       "u1",
		Content:        "Hello",
	})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessageRepo_Pagination(t *testing.T) {
	db := testDB(t)
	convRepo := NewGormConversationRepository(db)
	msgRepo := NewGormMessageRepository(db)
	ctx := context.Background()

	conv := seedConversation(t, db, convRepo, "u1", "u2")

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, msgRepo.Append(ctx, &domain.Message{
			ConversationID: conv.ID,
			SenderID:       "u1",
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	messages, total, err := msgRepo.ListForConversation(ctx, conv.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, messages, 2)
	assert.Equal(t, "message 2", messages[0].Content)
	assert.Equal(t, "message 3", messages[1].Content)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("u1", "u2"), PairKey("u2", "u1"))
	assert.Equal(t, "u1:u2", PairKey("u2", "u1"))
}

func TestPairKey_DistinctPairs(t *testing.T) {
	assert.NotEqual(t, PairKey("u1", "u2"), PairKey("u1", "u3"))
}

func TestHasParticipant(t *testing.T) {
	conv := &Conversation{ParticipantA: "u1", ParticipantB: "u2"}

	assert.True(t, conv.HasParticipant("u1"))
	assert.True(t, conv.HasParticipant("u2"))
	assert.False(t, conv.HasParticipant("u3"))
	assert.False(t, conv.HasParticipant(""))
}

func TestConversationModel_RoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	conv := &Conversation{
		ID:           "c1",
		ParticipantA: "u1",
		ParticipantB: "u2",
		ListingID:    "p1",
		LastMessage:  &LastMessage{Content: "Hello", SenderID: "u1", SentAt: at},
		CreatedAt:    at,
		UpdatedAt:    at,
	}

	model := ConversationToModel(conv)
	assert.Equal(t, "u1:u2", model.PairKey)

	back := model.ToDomain()
	assert.Equal(t, conv, back)
}

func TestConversationModel_NoLastMessage(t *testing.T) {
	model := ConversationToModel(&Conversation{ID: "c1", ParticipantA: "u1", ParticipantB: "u2"})
	assert.Nil(t, model.LastMessageAt)
	assert.Nil(t, model.ToDomain().LastMessage)
}

func TestMessageToResponse_SenderExpansion(t *testing.T) {
	msg := &Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hi", ReadBy: []string{"u1"}}

	resp := msg.ToResponse(&User{ID: "u1", Username: "alice"})
	assert.Equal(t, "alice", resp.Sender.Username)

	// A sender that no longer resolves still yields the bare ID.
	resp = msg.ToResponse(nil)
	assert.Equal(t, "u1", resp.Sender.ID)
	assert.Empty(t, resp.Sender.Username)
}

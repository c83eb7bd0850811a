package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lucashu/marketchat/internal/audit"
	"github.com/lucashu/marketchat/internal/auth"
	"github.com/lucashu/marketchat/internal/cache"
	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/hub"
	"github.com/lucashu/marketchat/internal/repository"
	"github.com/lucashu/marketchat/pkg/log"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAParticipant      = errors.New("not a participant of this conversation")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrSelfConversation     = errors.New("cannot open a conversation with yourself")
	ErrInvalidParticipant   = errors.New("invalid participant id")
	ErrParticipantNotFound  = errors.New("participant not found")
)

type chatService struct {
	users    repository.UserRepository
	convs    repository.ConversationRepository
	msgs     repository.MessageRepository
	gateway  Gateway
	verifier *auth.Verifier
	inbox    cache.InboxCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewChatService wires the messaging service. inbox may be nil to run
// without the redis inbox cache.
func NewChatService(
	users repository.UserRepository,
	convs repository.ConversationRepository,
	msgs repository.MessageRepository,
	gateway Gateway,
	verifier *auth.Verifier,
	inbox cache.InboxCache,
	cacheTTL time.Duration,
) ChatService {
	return &chatService{
		users:    users,
		convs:    convs,
		msgs:     msgs,
		gateway:  gateway,
		verifier: verifier,
		inbox:    inbox,
		cacheTTL: cacheTTL,
	}
}

// --- Live channel -----------------------------------------------------------

// HandleAuth runs the connection handshake. On success the connection is
// tagged with the resolved identity, the presence entry is installed, and
// connection:ready is emitted. A returned error means the caller must close
// the connection: a failed handshake never reaches Authenticated and gets no
// structured event.
func (s *chatService) HandleAuth(ctx context.Context, client *hub.Client, token string) error {
	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	client.State.Authenticate(identity.ID, identity.Username, identity.AvatarURL)
	s.gateway.SetPresence(identity.ID, client)

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldUserID, identity.ID).Msg("connection authenticated")

	return client.SendEvent(domain.NewReadyEvent(identity.ID))
}

// HandleJoin adds the connection to a conversation room. A blank id, like an
// unauthenticated connection, is silently ignored. Membership is not checked
// here; send-time authorization is the real gate.
func (s *chatService) HandleJoin(ctx context.Context, client *hub.Client, conversationID string) {
	if !client.State.IsAuthenticated() || conversationID == "" {
		return
	}
	s.gateway.JoinRoom(client, conversationID)
}

// HandleLeave removes one room membership; silently ignores bad input.
func (s *chatService) HandleLeave(ctx context.Context, client *hub.Client, conversationID string) {
	if !client.State.IsAuthenticated() || conversationID == "" {
		return
	}
	s.gateway.LeaveRoom(client, conversationID)
}

// HandleSend runs the shared send pipeline for the live channel. Failure
// feedback goes to the sender only, as message:error events; missing or
// blank fields are dropped without any event.
func (s *chatService) HandleSend(ctx context.Context, client *hub.Client, conversationID, content string) {
	if !client.State.IsAuthenticated() {
		client.SendEvent(domain.NewMessageErrorEvent("not authenticated"))
		return
	}

	content = strings.TrimSpace(content)
	if conversationID == "" || content == "" {
		// Deliberately silent: bad input never crashes or answers.
		return
	}

	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			client.SendEvent(domain.NewMessageErrorEvent("conversation not found"))
			return
		}
		client.SendEvent(domain.NewMessageErrorEvent("failed to send message"))
		return
	}

	if !conv.HasParticipant(client.State.UserID()) {
		client.SendEvent(domain.NewMessageErrorEvent("not a participant of this conversation"))
		return
	}

	sender := &domain.User{
		ID:       client.State.UserID(),
		Username: client.State.Username(),
	}

	if _, err := s.deliver(ctx, conv, sender, content); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldConversationID, conv.ID).Msg("live send failed")
		client.SendEvent(domain.NewMessageErrorEvent("failed to send message"))
	}
}

// --- REST facade ------------------------------------------------------------

// CreateConversation finds or creates the thread between the caller and
// participant_id. The second return value reports whether a new conversation
// was created.
func (s *chatService) CreateConversation(ctx context.Context, actorID string, req *domain.CreateConversationRequest) (*domain.ConversationResponse, bool, error) {
	participantID := strings.TrimSpace(req.ParticipantID)
	if participantID == "" {
		return nil, false, ErrInvalidParticipant
	}
	if participantID == actorID {
		return nil, false, ErrSelfConversation
	}

	if _, err := s.users.GetByID(ctx, participantID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, ErrParticipantNotFound
		}
		return nil, false, err
	}

	conv, err := s.convs.FindByParticipants(ctx, actorID, participantID)
	switch {
	case err == nil:
		// At most one conversation exists per pair; attach the listing only
		// if none is set yet.
		if req.PostID != "" && conv.ListingID == "" {
			if err := s.convs.AttachListing(ctx, conv.ID, req.PostID); err != nil {
				return nil, false, err
			}
			conv.ListingID = req.PostID
		}
		resp := conv.ToResponse()
		return &resp, false, nil

	case errors.Is(err, repository.ErrConversationNotFound):
		conv = &domain.Conversation{
			ParticipantA: actorID,
			ParticipantB: participantID,
			ListingID:    req.PostID,
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			return nil, false, err
		}

		audit.LogWithDetail(ctx, audit.ActionCreateConversation, actorID, conv.ID, "conversation created")
		s.invalidateInbox(ctx, actorID, participantID)

		resp := conv.ToResponse()
		return &resp, true, nil

	default:
		return nil, false, err
	}
}

// ListConversations returns the caller's inbox, newest activity first, read
// through the redis cache when one is configured.
func (s *chatService) ListConversations(ctx context.Context, userID string, page, pageSize int) (*domain.ListConversationsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var (
		conversations []domain.Conversation
		total         int
		err           error
	)

	if s.inbox != nil {
		conversations, total, err = s.listInboxCached(ctx, userID, page, pageSize)
	} else {
		conversations, total, err = s.convs.ListForUser(ctx, userID, page, pageSize)
	}
	if err != nil {
		return nil, err
	}

	responses := make([]domain.ConversationResponse, len(conversations))
	for i, conv := range conversations {
		responses[i] = conv.ToResponse()
	}

	return &domain.ListConversationsResponse{
		Conversations: responses,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *chatService) listInboxCached(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int, error) {
	key := s.inbox.BuildKey(userID, page, pageSize)

	// Collapse concurrent fills for the same page.
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		cached, err := s.inbox.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("inbox cache get error")
		}

		conversations, total, err := s.convs.ListForUser(ctx, userID, page, pageSize)
		if err != nil {
			return nil, err
		}

		fresh := &cache.InboxCacheResult{Conversations: conversations, Total: total}
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.inbox.Set(cacheCtx, key, fresh, s.cacheTTL); err != nil {
				l := log.L()
				l.Warn().Err(err).Msg("inbox cache set error")
			}
		}()

		return fresh, nil
	})
	if err != nil {
		return nil, 0, err
	}

	cached, ok := result.(*cache.InboxCacheResult)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected result type from singleflight")
	}
	return cached.Conversations, cached.Total, nil
}

// ListMessages returns a conversation's history, oldest first, with sender
// identities expanded. The caller must be a participant.
func (s *chatService) ListMessages(ctx context.Context, actorID, conversationID string, page, pageSize int) (*domain.ListMessagesResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	if !conv.HasParticipant(actorID) {
		return nil, ErrNotAParticipant
	}

	messages, total, err := s.msgs.ListForConversation(ctx, conversationID, page, pageSize)
	if err != nil {
		return nil, err
	}

	senders := s.resolveParticipants(ctx, conv)
	responses := make([]domain.MessageResponse, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse(senders[msg.SenderID])
	}

	return &domain.ListMessagesResponse{
		Messages:   responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// SendMessage runs the shared send pipeline for the REST path. Live members
// of the room still receive the broadcasts even though the sender used the
// non-live path.
func (s *chatService) SendMessage(ctx context.Context, actorID, conversationID, content string) (*domain.MessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	if !conv.HasParticipant(actorID) {
		return nil, ErrNotAParticipant
	}

	sender, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		// The actor authenticated moments ago; losing the record now is an
		// infrastructure failure, not an authorization one.
		return nil, err
	}

	return s.deliver(ctx, conv, sender, content)
}

// --- Shared pipeline --------------------------------------------------------

// deliver persists the message, refreshes the conversation summary, and fans
// out message:new and conversation:update to the room. Broadcast failures
// are logged, never surfaced: delivery is best effort. If the summary write
// fails after the message persisted, the caller sees an error and the
// summary stays stale until the next successful send.
func (s *chatService) deliver(ctx context.Context, conv *domain.Conversation, sender *domain.User, content string) (*domain.MessageResponse, error) {
	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		ReadBy:         []string{sender.ID},
	}

	if err := s.msgs.Append(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.convs.RecordLastMessage(ctx, conv.ID, content, sender.ID, msg.CreatedAt); err != nil {
		return nil, err
	}

	resp := msg.ToResponse(sender)
	last := domain.LastMessage{Content: content, SenderID: sender.ID, SentAt: msg.CreatedAt}

	if err := s.gateway.BroadcastToRoom(conv.ID, domain.NewMessageNewEvent(resp)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldConversationID, conv.ID).Msg("failed to broadcast message:new")
	}
	if err := s.gateway.BroadcastToRoom(conv.ID, domain.NewConversationUpdateEvent(conv.ID, last, msg.CreatedAt)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldConversationID, conv.ID).Msg("failed to broadcast conversation:update")
	}

	s.invalidateInbox(ctx, conv.ParticipantA, conv.ParticipantB)
	audit.LogWithDetail(ctx, audit.ActionSendMessage, sender.ID, conv.ID, "message sent")

	return &resp, nil
}

// resolveParticipants fetches both participant records; a missing account
// maps to nil and the bare ID is used downstream.
func (s *chatService) resolveParticipants(ctx context.Context, conv *domain.Conversation) map[string]*domain.User {
	users := make(map[string]*domain.User, 2)
	for _, id := range []string{conv.ParticipantA, conv.ParticipantB} {
		if u, err := s.users.GetByID(ctx, id); err == nil {
			users[id] = u
		}
	}
	return users
}

func (s *chatService) invalidateInbox(ctx context.Context, userIDs ...string) {
	if s.inbox == nil {
		return
	}
	if err := s.inbox.Invalidate(ctx, userIDs...); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to invalidate inbox cache")
	}
}

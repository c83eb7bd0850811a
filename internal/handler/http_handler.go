package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/middleware"
	"github.com/lucashu/marketchat/internal/service"
	"github.com/lucashu/marketchat/pkg/log"
	"github.com/lucashu/marketchat/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HTTPHandler is the REST facade over the messaging service. It shares the
// send pipeline with the live channel, so live room members still receive
// broadcasts for messages posted here.
type HTTPHandler struct {
	chatService    service.ChatService
	authMiddleware *middleware.AuthMiddleware
}

func NewHTTPHandler(chatService service.ChatService, authMiddleware *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{
		chatService:    chatService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes. Every chat endpoint is private.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		conversations := api.Group("/conversations", h.authMiddleware.RequireAuth())
		{
			conversations.POST("", h.CreateConversation)
			conversations.GET("", h.ListConversations)
			conversations.GET("/:id/messages", h.ListMessages)
			conversations.POST("/:id/messages", h.SendMessage)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// CreateConversation finds or creates the thread between the caller and
// another user. 200 for an existing thread, 201 for a fresh one.
func (h *HTTPHandler) CreateConversation(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create conversation request")
		response.BadRequest(c, err.Error())
		return
	}

	conv, created, err := h.chatService.CreateConversation(ctx, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidParticipant):
			response.BadRequest(c, "invalid participant id")
		case errors.Is(err, service.ErrSelfConversation):
			response.BadRequest(c, "cannot open a conversation with yourself")
		case errors.Is(err, service.ErrParticipantNotFound):
			response.NotFound(c, "participant not found")
		default:
			l.Error().Err(err).Msg("failed to create conversation")
			response.InternalError(c, "failed to create conversation")
		}
		return
	}

	if created {
		response.Created(c, gin.H{"conversation": conv})
		return
	}
	response.Success(c, gin.H{"conversation": conv})
}

// ListConversations returns the caller's inbox, most recent activity first.
func (h *HTTPHandler) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	result, err := h.chatService.ListConversations(ctx, userID, page, pageSize)
	if err != nil {
		l.Error().Err(err).Msg("failed to list conversations")
		response.InternalError(c, "failed to list conversations")
		return
	}

	response.Success(c, result)
}

// ListMessages returns conversation history, oldest first.
func (h *HTTPHandler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	conversationID := c.Param("id")

	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	result, err := h.chatService.ListMessages(ctx, userID, conversationID, page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			response.NotFound(c, "conversation not found")
		case errors.Is(err, service.ErrNotAParticipant):
			response.Forbidden(c, "you are not a participant of this conversation")
		default:
			l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to list messages")
			response.InternalError(c, "failed to list messages")
		}
		return
	}

	response.Success(c, result)
}

// SendMessage posts a message through the same pipeline the live channel
// uses.
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	conversationID := c.Param("id")

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(ctx, userID, conversationID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			response.BadRequest(c, "message content is empty")
		case errors.Is(err, service.ErrConversationNotFound):
			response.NotFound(c, "conversation not found")
		case errors.Is(err, service.ErrNotAParticipant):
			response.Forbidden(c, "you are not a participant of this conversation")
		default:
			l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to send message")
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Created(c, gin.H{"message": msg})
}

// pagination reads page/page_size query params, clamping to sane bounds.
// Writes the error response itself when the input is not numeric.
func pagination(c *gin.Context) (page, pageSize int, ok bool) {
	page = 1
	pageSize = defaultPageSize

	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "page must be a positive integer")
			return 0, 0, false
		}
		page = parsed
	}

	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "page_size must be a positive integer")
			return 0, 0, false
		}
		pageSize = parsed
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	return page, pageSize, true
}

package handlers

import (
	"net/http"
	"strconv"

	"educrm/internal/chat"
	"educrm/internal/repo"
	"educrm/internal/ws"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ConversationHandler exposes conversation and message operations over REST.
// All access decisions live in the chat service; the handler only extracts
// identity and pagination from the request.
type ConversationHandler struct {
	chatService *chat.Service
	gateway     *ws.Gateway
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(chatService *chat.Service, gateway *ws.Gateway) *ConversationHandler {
	return &ConversationHandler{chatService: chatService, gateway: gateway}
}

// Create godoc
// @Summary Create conversation
// @Description Create a conversation with the given participants. Two-party direct conversations are idempotent per purpose.
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body chat.CreateConversationRequest true "Conversation"
// @Success 201 {object} chat.ConversationView
// @Failure 400 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations [post]
func (h *ConversationHandler) Create(c echo.Context) error {
	var req chat.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID := c.Get("user_id").(uuid.UUID)
	view, err := h.chatService.CreateConversation(userID, req)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusCreated, view)
}

// List godoc
// @Summary List my conversations
// @Description List conversations the authenticated user participates in
// @Tags conversations
// @Produce json
// @Param purpose query string false "Filter by purpose"
// @Param type query string false "Filter by type"
// @Param archived query bool false "Include only archived or only active"
// @Param search query string false "Search by conversation name"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PaginationResult[chat.ConversationView]
// @Security ApiKeyAuth
// @Router /conversations [get]
func (h *ConversationHandler) List(c echo.Context) error {
	userID := c.Get("user_id").(uuid.UUID)
	limit, offset := pagination(c)

	filters := repo.ConversationFilters{
		Purpose: c.QueryParam("purpose"),
		Type:    c.QueryParam("type"),
		Search:  c.QueryParam("search"),
	}
	if raw := c.QueryParam("archived"); raw != "" {
		archived := raw == "true"
		filters.Archived = &archived
	}

	page, err := h.chatService.GetUserConversations(userID, filters, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// ListForManager godoc
// @Summary List office conversations
// @Description List conversations with office-scoped purposes for a manager
// @Tags conversations
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PaginationResult[chat.ConversationView]
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/office [get]
func (h *ConversationHandler) ListForManager(c echo.Context) error {
	userID := c.Get("user_id").(uuid.UUID)
	limit, offset := pagination(c)

	page, err := h.chatService.GetManagerConversations(userID, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// ListAll godoc
// @Summary List all conversations
// @Description List every conversation, optionally filtered by office. Super admin only.
// @Tags conversations
// @Produce json
// @Param office_id query string false "Office filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PaginationResult[chat.ConversationView]
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/all [get]
func (h *ConversationHandler) ListAll(c echo.Context) error {
	role := c.Get("user_role").(string)
	limit, offset := pagination(c)

	var officeID *uuid.UUID
	if raw := c.QueryParam("office_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid office id"})
		}
		officeID = &id
	}

	page, err := h.chatService.GetSuperAdminConversations(role, officeID, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// Monitor godoc
// @Summary Monitor office conversations
// @Description List every conversation of an office for oversight, without joining them
// @Tags conversations
// @Produce json
// @Param office_id path string true "Office ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PaginationResult[chat.ConversationView]
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/monitor/{office_id} [get]
func (h *ConversationHandler) Monitor(c echo.Context) error {
	officeID, err := uuid.Parse(c.Param("office_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid office id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	role := c.Get("user_role").(string)
	limit, offset := pagination(c)

	page, err := h.chatService.GetOfficeConversationsForMonitoring(userID, role, officeID, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// GetByID godoc
// @Summary Get conversation
// @Description Get a conversation with a participant or monitor view depending on the requester
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} chat.ConversationView
// @Failure 404 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	role := c.Get("user_role").(string)

	view, err := h.chatService.GetConversationByID(id, userID, role)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// Update godoc
// @Summary Update conversation
// @Description Update name, settings or metadata. Requires admin role or the edit permission.
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body chat.UpdateConversationRequest true "Changes"
// @Success 200 {object} chat.ConversationView
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id} [put]
func (h *ConversationHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	var req chat.UpdateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	view, err := h.chatService.UpdateConversation(id, userID, req)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// Archive godoc
// @Summary Archive conversation
// @Description Archive or unarchive a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body map[string]bool true "Archived flag"
// @Success 200 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/archive [put]
func (h *ConversationHandler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	if err := h.chatService.ArchiveConversation(id, userID, req.Archived); err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Conversation updated"})
}

// AddParticipants godoc
// @Summary Add participants
// @Description Add users to a conversation. Requires the add-members permission.
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body map[string][]string true "User IDs"
// @Success 200 {object} chat.ConversationView
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/participants [post]
func (h *ConversationHandler) AddParticipants(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	var req struct {
		UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID := c.Get("user_id").(uuid.UUID)
	view, err := h.chatService.AddParticipants(id, userID, req.UserIDs)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// RemoveParticipant godoc
// @Summary Remove participant
// @Description Remove a participant. Anyone may leave; removing others requires the remove-members permission.
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Param user_id path string true "User ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/participants/{user_id} [delete]
func (h *ConversationHandler) RemoveParticipant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	if err := h.chatService.RemoveParticipant(id, userID, targetID); err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Participant removed"})
}

// ListMessages godoc
// @Summary List messages
// @Description List conversation messages, newest first
// @Tags messages
// @Produce json
// @Param id path string true "Conversation ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Message
// @Failure 404 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	role := c.Get("user_role").(string)
	limit, offset := pagination(c)

	messages, err := h.chatService.ListMessages(id, userID, role, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, messages)
}

// SendMessage godoc
// @Summary Send message
// @Description Send a message to a conversation over REST. The realtime path is the socket send_message event.
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body chat.SendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	var req chat.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	message, err := h.chatService.SendMessage(id, userID, req)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusCreated, message)
}

// MarkRead godoc
// @Summary Mark conversation read
// @Description Reset the unread counter and advance the read watermark
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /conversations/{id}/read [put]
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	readAt, err := h.chatService.MarkConversationAsRead(id, userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"read_at": readAt})
}

// Stats godoc
// @Summary Conversation statistics
// @Description Message counts by type for a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.ConversationStats
// @Security ApiKeyAuth
// @Router /conversations/{id}/stats [get]
func (h *ConversationHandler) Stats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	stats, err := h.chatService.GetConversationStats(id, userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, stats)
}

// TypingUsers godoc
// @Summary Who is typing
// @Description List users currently typing in a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string][]string
// @Security ApiKeyAuth
// @Router /conversations/{id}/typing [get]
func (h *ConversationHandler) TypingUsers(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	if !h.chatService.IsActiveParticipant(id, userID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"user_ids": h.gateway.TypingUsers(id)})
}

// LeadConversation godoc
// @Summary Get or create lead conversation
// @Description Get or create the direct conversation between a consultant and a lead
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body map[string]string true "Lead user ID"
// @Success 200 {object} chat.ConversationView
// @Failure 400 {object} map[string]string
// @Security ApiKeyAuth
// @Router /conversations/lead [post]
func (h *ConversationHandler) LeadConversation(c echo.Context) error {
	var req struct {
		LeadUserID uuid.UUID `json:"lead_user_id" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID := c.Get("user_id").(uuid.UUID)
	view, err := h.chatService.GetOrCreateLeadConversation(userID, req.LeadUserID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"educrm/internal/auth"
	"educrm/internal/chat"
	"educrm/internal/services"
	"educrm/pkg/apperrors"
	"educrm/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxConnectionsPerUser = 8

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, check against allowed origins
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway is the single ingress for client-originated socket events. It
// authenticates once at connect time, validates every payload against its
// per-event schema, rate-limits per connection, routes to the matching
// service operation and converts every operation error into a structured
// envelope sent back to the sender only.
type Gateway struct {
	hub           *Hub
	router        *Router
	typing        *TypingCoordinator
	chatService   *chat.Service
	notifications *services.NotificationService
	storage       *services.StorageService
	authService   *auth.Service
	validate      *validator.Validate
	log           zerolog.Logger
}

// NewGateway creates a new event gateway
func NewGateway(
	hub *Hub,
	router *Router,
	typing *TypingCoordinator,
	chatService *chat.Service,
	notifications *services.NotificationService,
	storage *services.StorageService,
	authService *auth.Service,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		hub:           hub,
		router:        router,
		typing:        typing,
		chatService:   chatService,
		notifications: notifications,
		storage:       storage,
		authService:   authService,
		validate:      validator.New(),
		log:           log,
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
// Identity is resolved here, once, and attached to the connection.
func (g *Gateway) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization token")
	}

	claims, err := g.authService.ValidateToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if claims.Type != "access" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token type")
	}

	if g.hub.LiveConnectionCount(claims.UserID) >= maxConnectionsPerUser {
		g.evictOldestConnection(claims.UserID)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return err
	}

	client := newClient(conn, claims.UserID, claims.Role, claims.OfficeID, g)
	g.handleConnect(client)

	go client.writePump()
	go client.readPump()

	return nil
}

// evictOldestConnection makes room for a new device by force-closing the
// user's longest-lived connection once the per-user cap is reached. The
// evicted client is told why before the close frame goes out.
func (g *Gateway) evictOldestConnection(userID uuid.UUID) {
	var oldest *Client
	for _, c := range g.hub.ConnectionsForUser(userID) {
		if oldest == nil || c.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return
	}

	oldest.Send(Event{
		Event: EventForceDisconnect,
		Data: map[string]interface{}{
			"reason": "connection limit reached, oldest session closed",
		},
		Timestamp: time.Now(),
	})
	oldest.Close()
	g.log.Info().Str("user_id", userID.String()).Str("connection_id", oldest.ID.String()).Msg("Evicted oldest connection")
}

// handleConnect registers the connection, derives its room memberships from
// the active participant rows and broadcasts the offline→online transition
// to co-conversation peers on the user's first live connection. Presence is
// best-effort: a failed lookup is logged and never blocks registration.
func (g *Gateway) handleConnect(client *Client) {
	conversationIDs, err := g.chatService.ActiveConversationIDs(client.UserID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", client.UserID.String()).Msg("Failed to load conversation memberships")
	}

	first := g.hub.Register(client, conversationIDs)

	client.Send(Event{
		Event: EventConnectionEstablished,
		Data: map[string]interface{}{
			"connection_id": client.ID,
			"user_id":       client.UserID,
		},
		Timestamp: time.Now(),
	})

	if first {
		peers, err := g.chatService.ActivePeerIDs(client.UserID)
		if err != nil {
			g.log.Warn().Err(err).Str("user_id", client.UserID.String()).Msg("Failed to resolve presence peers")
			return
		}
		g.router.EmitToUsers(peers, EventUserStatusChanged, map[string]interface{}{
			"user_id": client.UserID,
			"status":  StatusOnline,
		})
	}
}

// handleDisconnect unregisters the connection; on the user's last live
// connection it purges their typing state and broadcasts online→offline.
func (g *Gateway) handleDisconnect(client *Client) {
	last := g.hub.Unregister(client)
	if !last {
		return
	}

	g.typing.PurgeUser(client.UserID)

	peers, err := g.chatService.ActivePeerIDs(client.UserID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", client.UserID.String()).Msg("Failed to resolve presence peers")
		return
	}
	g.router.EmitToUsers(peers, EventUserStatusChanged, map[string]interface{}{
		"user_id": client.UserID,
		"status":  StatusOffline,
	})
}

// dispatch routes one inbound frame. Errors never crash the connection and
// are never silently swallowed: the sender always gets an envelope.
func (g *Gateway) dispatch(client *Client, raw []byte) {
	if !client.limiter.Allow() {
		g.sendError(client, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil || event.Event == "" {
		g.sendError(client, http.StatusBadRequest, "malformed event frame")
		return
	}

	var err error
	switch event.Event {
	case EventSendMessage:
		err = g.handleSendMessage(client, event.Data)
	case EventEditMessage:
		err = g.handleEditMessage(client, event.Data)
	case EventDeleteMessage:
		err = g.handleDeleteMessage(client, event.Data)
	case EventMarkMessageRead:
		err = g.handleMarkRead(client, event.Data)
	case EventJoinConversation:
		err = g.handleJoinConversation(client, event.Data)
	case EventLeaveConversation:
		err = g.handleLeaveConversation(client, event.Data)
	case EventCreateConversation:
		err = g.handleCreateConversation(client, event.Data)
	case EventTypingStart:
		err = g.handleTyping(client, event.Data, true)
	case EventTypingStop:
		err = g.handleTyping(client, event.Data, false)
	case EventUpdatePresence:
		err = g.handleUpdatePresence(client, event.Data)
	case EventGetOnlineUsers:
		err = g.handleGetOnlineUsers(client)
	case EventFileUploadStart:
		err = g.handleFileUploadStart(client, event.Data)
	case EventFileUploadProgress:
		err = g.handleFileUploadProgress(client, event.Data)
	case EventFileUploadComplete:
		err = g.handleFileUploadComplete(client, event.Data)
	case EventMarkNotificationRead:
		err = g.handleMarkNotificationRead(client, event.Data)
	case EventGetUnreadCount:
		err = g.handleGetUnreadCount(client)
	case EventMonitorConversation:
		err = g.requireAdminRole(client, func() error {
			return g.handleMonitorConversation(client, event.Data)
		})
	case EventBroadcastAnnounce:
		err = g.requireAdminRole(client, func() error {
			return g.handleBroadcastAnnouncement(client, event.Data)
		})
	default:
		g.sendError(client, http.StatusBadRequest, "unknown event: "+event.Event)
		return
	}

	if err != nil {
		g.log.Debug().Err(err).
			Str("event", event.Event).
			Str("user_id", client.UserID.String()).
			Msg("Socket event failed")
		g.sendError(client, apperrors.Code(err), apperrors.Message(err))
	}
}

// requireAdminRole gates admin-only events at dispatch time rather than
// leaving the check to downstream services
func (g *Gateway) requireAdminRole(client *Client, next func() error) error {
	if client.Role != models.RoleManager && client.Role != models.RoleSuperAdmin {
		return apperrors.Forbidden("admin role required")
	}
	return next()
}

func (g *Gateway) handleSendMessage(client *Client, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	_, err := g.chatService.SendMessage(payload.ConversationID, client.UserID, chat.SendMessageRequest{
		Type:      payload.Type,
		Content:   payload.Content,
		FileURL:   payload.FileURL,
		FileName:  payload.FileName,
		FileSize:  payload.FileSize,
		FileMime:  payload.FileMime,
		ReplyToID: payload.ReplyToID,
	})
	return err
}

func (g *Gateway) handleEditMessage(client *Client, data json.RawMessage) error {
	var payload editMessagePayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	_, err := g.chatService.EditMessage(payload.MessageID, client.UserID, payload.Content)
	return err
}

func (g *Gateway) handleDeleteMessage(client *Client, data json.RawMessage) error {
	var payload deleteMessagePayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	return g.chatService.DeleteMessage(payload.MessageID, client.UserID)
}

func (g *Gateway) handleMarkRead(client *Client, data json.RawMessage) error {
	var payload markReadPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	switch {
	case payload.MessageID != nil:
		return g.chatService.MarkMessageRead(*payload.MessageID, client.UserID)
	case payload.ConversationID != nil:
		_, err := g.chatService.MarkConversationAsRead(*payload.ConversationID, client.UserID)
		return err
	default:
		return apperrors.Validation("message_id or conversation_id is required")
	}
}

func (g *Gateway) handleJoinConversation(client *Client, data json.RawMessage) error {
	var payload conversationPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	if !g.chatService.IsActiveParticipant(payload.ConversationID, client.UserID) {
		return apperrors.NotFound("conversation not found")
	}
	g.hub.JoinRoom(client, payload.ConversationID)
	return nil
}

func (g *Gateway) handleLeaveConversation(client *Client, data json.RawMessage) error {
	var payload conversationPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	g.hub.LeaveRoom(client, payload.ConversationID)
	return nil
}

func (g *Gateway) handleCreateConversation(client *Client, data json.RawMessage) error {
	var payload createConversationPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	_, err := g.chatService.CreateConversation(client.UserID, chat.CreateConversationRequest{
		ParticipantIDs: payload.ParticipantIDs,
		Type:           payload.Type,
		Purpose:        payload.Purpose,
		Name:           payload.Name,
		OfficeID:       payload.OfficeID,
	})
	return err
}

func (g *Gateway) handleTyping(client *Client, data json.RawMessage, start bool) error {
	var payload conversationPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	if !g.chatService.IsActiveParticipant(payload.ConversationID, client.UserID) {
		return apperrors.NotFound("conversation not found")
	}
	if start {
		g.typing.Start(payload.ConversationID, client.UserID)
	} else {
		g.typing.Stop(payload.ConversationID, client.UserID)
	}
	return nil
}

func (g *Gateway) handleUpdatePresence(client *Client, data json.RawMessage) error {
	var payload updatePresencePayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	peers, err := g.chatService.ActivePeerIDs(client.UserID)
	if err != nil {
		return apperrors.Internal("failed to resolve presence peers", err)
	}
	g.router.EmitToUsers(peers, EventUserPresenceChanged, map[string]interface{}{
		"user_id": client.UserID,
		"status":  payload.Status,
	})
	return nil
}

func (g *Gateway) handleGetOnlineUsers(client *Client) error {
	peers, err := g.chatService.ActivePeerIDs(client.UserID)
	if err != nil {
		return apperrors.Internal("failed to resolve presence peers", err)
	}
	client.Send(Event{
		Event:     EventOnlineUsers,
		Data:      map[string]interface{}{"user_ids": g.hub.OnlineAmong(peers)},
		Timestamp: time.Now(),
	})
	return nil
}

func (g *Gateway) handleFileUploadStart(client *Client, data json.RawMessage) error {
	var payload fileUploadStartPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	if !g.chatService.IsActiveParticipant(payload.ConversationID, client.UserID) {
		return apperrors.NotFound("conversation not found")
	}
	if g.storage == nil {
		return apperrors.Internal("file storage is not configured", nil)
	}
	ticket, err := g.storage.PresignUpload(payload.ConversationID, payload.FileName, payload.MimeType)
	if err != nil {
		return apperrors.Internal("failed to prepare upload", err)
	}
	client.Send(Event{Event: EventFileUploadReady, Data: ticket, Timestamp: time.Now()})
	return nil
}

func (g *Gateway) handleFileUploadProgress(client *Client, data json.RawMessage) error {
	var payload fileUploadProgressPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	if !g.chatService.IsActiveParticipant(payload.ConversationID, client.UserID) {
		return apperrors.NotFound("conversation not found")
	}
	g.router.EmitToConversationExcept(payload.ConversationID, client.UserID, EventFileUploadProgress, map[string]interface{}{
		"conversation_id": payload.ConversationID,
		"upload_id":       payload.UploadID,
		"progress":        payload.Progress,
		"user_id":         client.UserID,
	})
	return nil
}

func (g *Gateway) handleFileUploadComplete(client *Client, data json.RawMessage) error {
	var payload fileUploadCompletePayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	_, err := g.chatService.SendMessage(payload.ConversationID, client.UserID, chat.SendMessageRequest{
		Type:     models.MessageTypeFile,
		Content:  payload.Content,
		FileURL:  payload.FileURL,
		FileName: payload.FileName,
		FileSize: payload.FileSize,
		FileMime: payload.FileMime,
	})
	return err
}

func (g *Gateway) handleMarkNotificationRead(client *Client, data json.RawMessage) error {
	var payload markNotificationReadPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	return g.notifications.MarkRead(payload.NotificationID, client.UserID)
}

func (g *Gateway) handleGetUnreadCount(client *Client) error {
	messages, err := g.chatService.TotalUnread(client.UserID)
	if err != nil {
		return apperrors.Internal("failed to count unread messages", err)
	}
	notifications, err := g.notifications.CountUnread(client.UserID)
	if err != nil {
		return err
	}
	client.Send(Event{
		Event: EventUnreadCount,
		Data: map[string]interface{}{
			"messages":      messages,
			"notifications": notifications,
			"total":         messages + notifications,
		},
		Timestamp: time.Now(),
	})
	return nil
}

func (g *Gateway) handleMonitorConversation(client *Client, data json.RawMessage) error {
	var payload conversationPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	view, err := g.chatService.GetConversationByID(payload.ConversationID, client.UserID, client.Role)
	if err != nil {
		return err
	}
	g.hub.JoinRoom(client, payload.ConversationID)
	client.Send(Event{
		Event:     EventMonitorConversation,
		Data:      map[string]interface{}{"success": true, "conversation": view},
		Timestamp: time.Now(),
	})
	return nil
}

func (g *Gateway) handleBroadcastAnnouncement(client *Client, data json.RawMessage) error {
	var payload broadcastAnnouncementPayload
	if err := g.decode(data, &payload); err != nil {
		return err
	}
	g.router.Broadcast(EventSystemAnnouncement, map[string]interface{}{
		"message": payload.Message,
		"from":    client.UserID,
		"role":    client.Role,
	})
	return nil
}

// decode unmarshals and validates an event payload against its schema
func (g *Gateway) decode(data json.RawMessage, payload interface{}) error {
	if len(data) == 0 {
		return apperrors.Validation("event payload is required")
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return apperrors.Validation("invalid event payload")
	}
	if err := g.validate.Struct(payload); err != nil {
		return apperrors.Validation(err.Error())
	}
	return nil
}

func (g *Gateway) sendError(client *Client, code int, message string) {
	client.Send(Event{
		Event: EventError,
		Data: ErrorPayload{
			Success: false,
			Error:   ErrorDetail{Message: message, Code: code},
		},
		Timestamp: time.Now(),
	})
}

// TypingUsers exposes the typing set for HTTP handlers
func (g *Gateway) TypingUsers(conversationID uuid.UUID) []uuid.UUID {
	return g.typing.TypingUsers(conversationID)
}

// ConnectedClients returns the number of live connections
func (g *Gateway) ConnectedClients() int {
	return len(g.hub.AllConnections())
}

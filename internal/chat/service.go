package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"educrm/internal/repo"
	"educrm/pkg/apperrors"
	"educrm/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outbound event names dispatched by the conversation service. The names are
// the wire contract consumed by clients and must not change.
const (
	EventConversationCreated  = "conversation_created"
	EventConversationUpdated  = "conversation_updated"
	EventConversationArchived = "conversation_archived"
	EventParticipantsAdded    = "participants_added"
	EventParticipantRemoved   = "participant_removed"
	EventConversationRead     = "conversation_read"
	EventMessageDelivered     = "message_delivered"
	EventMessageRead          = "message_read"
	EventMessageEdited        = "message_edited"
	EventMessageDeleted       = "message_deleted"
)

// Notification types produced by conversation lifecycle events
const (
	NotificationNewConversation = "new_conversation"
	NotificationAddedToGroup    = "added_to_conversation"
	NotificationAnnouncement    = "announcement"
)

// Service implements the transactional conversation operations. Every
// operation performs its persistence writes first and only then dispatches
// room events and notifications; side-effect failures are logged and never
// propagated as the operation's error.
type Service struct {
	conversations ConversationStore
	participants  ParticipantStore
	messages      MessageStore
	users         UserStore
	dispatcher    Dispatcher
	rooms         RoomManager
	notifier      Notifier
	log           zerolog.Logger
}

// NewService creates a new conversation service
func NewService(
	conversations ConversationStore,
	participants ParticipantStore,
	messages MessageStore,
	users UserStore,
	dispatcher Dispatcher,
	rooms RoomManager,
	notifier Notifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		users:         users,
		dispatcher:    dispatcher,
		rooms:         rooms,
		notifier:      notifier,
		log:           log,
	}
}

// CreateConversationRequest carries the inputs for CreateConversation
type CreateConversationRequest struct {
	ParticipantIDs []uuid.UUID                  `json:"participant_ids" validate:"required,min=1"`
	Type           string                       `json:"type" validate:"required"`
	Purpose        string                       `json:"purpose" validate:"required"`
	Name           string                       `json:"name"`
	OfficeID       *uuid.UUID                   `json:"office_id"`
	Settings       *models.ConversationSettings `json:"settings"`
}

// CreateConversation creates a conversation with its participants. For a
// two-party direct conversation it first looks for an existing active direct
// conversation with the same unordered pair and purpose and returns it
// idempotently; that read-before-write check is what enforces the
// one-direct-conversation-per-pair-per-purpose invariant.
func (s *Service) CreateConversation(creatorID uuid.UUID, req CreateConversationRequest) (*ConversationView, error) {
	if !validConversationType(req.Type) {
		return nil, apperrors.Validation("invalid conversation type: " + req.Type)
	}
	if !validPurpose(req.Purpose) {
		return nil, apperrors.Validation("invalid conversation purpose: " + req.Purpose)
	}

	creator, err := s.users.GetByID(creatorID)
	if err != nil {
		return nil, apperrors.NotFound("creator not found")
	}

	participantIDs := dedupeWith(req.ParticipantIDs, creatorID)

	if req.Type == models.ConversationTypeDirect {
		if len(participantIDs) != 2 {
			return nil, apperrors.Validation("direct conversations require exactly two participants")
		}
		existing, err := s.FindExistingDirectConversation([2]uuid.UUID{participantIDs[0], participantIDs[1]}, req.Purpose)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.hydrateForUser(existing.ID, creatorID)
		}
	}

	settings := models.DefaultConversationSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	conversation := &models.Conversation{
		Type:      req.Type,
		Purpose:   req.Purpose,
		Name:      req.Name,
		OfficeID:  req.OfficeID,
		CreatedBy: creatorID,
		IsActive:  true,
		Settings:  settings,
		Metadata:  models.Metadata{},
	}

	now := time.Now()
	rows := make([]models.ConversationParticipant, 0, len(participantIDs))
	for _, userID := range participantIDs {
		role := models.ParticipantRoleMember
		isCreator := userID == creatorID
		if isCreator {
			role = models.ParticipantRoleAdmin
		}
		rows = append(rows, models.ConversationParticipant{
			UserID:      userID,
			Role:        role,
			AddedBy:     &creatorID,
			JoinedAt:    now,
			IsActive:    true,
			Permissions: DefaultPermissions(req.Purpose, isCreator),
		})
	}

	var systemMessage *models.Message
	if req.Type == models.ConversationTypeGroup {
		systemMessage = &models.Message{
			SenderID:    creatorID,
			SenderName:  creator.Name,
			Type:        models.MessageTypeSystem,
			Content:     fmt.Sprintf("%s created the conversation", creator.Name),
			DeliveredAt: &now,
		}
	}

	if err := s.conversations.CreateGraph(conversation, rows, systemMessage); err != nil {
		return nil, apperrors.Internal("failed to create conversation", err)
	}

	view, err := s.hydrateForUser(conversation.ID, creatorID)
	if err != nil {
		return nil, err
	}

	// Side effects after the write committed
	for _, userID := range participantIDs {
		s.rooms.JoinUser(conversation.ID, userID)
		s.dispatcher.EmitToUser(userID, EventConversationCreated, view)
		if userID != creatorID {
			s.notifier.SendNotification(Notification{
				UserID:  userID,
				Type:    NotificationNewConversation,
				Message: fmt.Sprintf("%s started a conversation with you", creator.Name),
				Details: map[string]interface{}{"conversation_id": conversation.ID.String()},
			})
		}
	}

	return view, nil
}

// FindExistingDirectConversation finds the active direct conversation whose
// exactly-two active participants match the unordered pair, or nil. Loads
// all active direct conversations of the purpose and filters in memory;
// acceptable at CRM scale.
func (s *Service) FindExistingDirectConversation(pair [2]uuid.UUID, purpose string) (*models.Conversation, error) {
	candidates, err := s.conversations.FindActiveDirect(purpose)
	if err != nil {
		return nil, apperrors.Internal("failed to look up direct conversations", err)
	}

	want := sortedPair(pair[0], pair[1])
	for i := range candidates {
		active := make([]uuid.UUID, 0, 2)
		for _, p := range candidates[i].Participants {
			if p.IsActive {
				active = append(active, p.UserID)
			}
		}
		if len(active) != 2 {
			continue
		}
		got := sortedPair(active[0], active[1])
		if got == want {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// GetOrCreateLeadConversation returns the direct lead↔consultant conversation
// for the pair, creating it on first contact with the consultant as admin.
func (s *Service) GetOrCreateLeadConversation(consultantID, leadUserID uuid.UUID) (*ConversationView, error) {
	consultant, err := s.users.GetByID(consultantID)
	if err != nil {
		return nil, apperrors.NotFound("consultant not found")
	}

	return s.CreateConversation(consultantID, CreateConversationRequest{
		ParticipantIDs: []uuid.UUID{consultantID, leadUserID},
		Type:           models.ConversationTypeDirect,
		Purpose:        models.PurposeLeadConsultant,
		OfficeID:       consultant.OfficeID,
	})
}

// GetConversationByID returns the conversation projected for the requester.
// Managers get a monitor view when the conversation belongs to their office;
// super admins always do. Everyone else must be an active participant, and
// any failure is reported as NotFound so callers cannot distinguish "absent"
// from "not yours".
func (s *Service) GetConversationByID(id, requesterID uuid.UUID, requesterRole string) (*ConversationView, error) {
	conversation, err := s.conversations.GetByID(id)
	if err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}

	switch requesterRole {
	case models.RoleSuperAdmin:
		if p := activeParticipantOf(conversation, requesterID); p != nil {
			return participantView(conversation, p), nil
		}
		return monitorView(conversation), nil

	case models.RoleManager:
		if p := activeParticipantOf(conversation, requesterID); p != nil {
			return participantView(conversation, p), nil
		}
		manager, err := s.users.GetByID(requesterID)
		if err != nil {
			return nil, apperrors.NotFound("conversation not found")
		}
		if manager.OfficeID != nil && conversation.OfficeID != nil && *manager.OfficeID == *conversation.OfficeID {
			return monitorView(conversation), nil
		}
		return nil, apperrors.NotFound("conversation not found")

	default:
		if p := activeParticipantOf(conversation, requesterID); p != nil {
			return participantView(conversation, p), nil
		}
		return nil, apperrors.NotFound("conversation not found")
	}
}

// GetUserConversations lists the requester's conversations with per-viewer
// unread counters taken from the preloaded participant rows, so the hot list
// path issues no per-row queries.
func (s *Service) GetUserConversations(userID uuid.UUID, filters repo.ConversationFilters, limit, offset int) (models.PaginationResult[ConversationView], error) {
	page, err := s.conversations.ListForUser(userID, filters, limit, offset)
	if err != nil {
		return models.PaginationResult[ConversationView]{}, apperrors.Internal("failed to list conversations", err)
	}

	views := make([]ConversationView, 0, len(page.Data))
	for i := range page.Data {
		if p := activeParticipantOf(&page.Data[i], userID); p != nil {
			views = append(views, *participantView(&page.Data[i], p))
		}
	}

	return models.PaginationResult[ConversationView]{
		Data:       views,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	}, nil
}

// GetManagerConversations lists the monitoring projection of the manager's
// office conversations, restricted to the manager-facing purposes.
func (s *Service) GetManagerConversations(managerID uuid.UUID, limit, offset int) (models.PaginationResult[ConversationView], error) {
	manager, err := s.users.GetByID(managerID)
	if err != nil {
		return models.PaginationResult[ConversationView]{}, apperrors.NotFound("manager not found")
	}
	if manager.Role != models.RoleManager {
		return models.PaginationResult[ConversationView]{}, apperrors.Forbidden("manager role required")
	}
	if manager.OfficeID == nil {
		return models.PaginationResult[ConversationView]{}, apperrors.Validation("manager has no office assigned")
	}

	purposes := []string{
		models.PurposeLeadConsultant,
		models.PurposeManagerConsultant,
		models.PurposeManagerReceptionist,
		models.PurposeManagerLead,
	}
	page, err := s.conversations.ListByOffice(*manager.OfficeID, purposes, limit, offset)
	if err != nil {
		return models.PaginationResult[ConversationView]{}, apperrors.Internal("failed to list office conversations", err)
	}

	return monitorPage(page, managerID), nil
}

// GetSuperAdminConversations lists all conversations across offices with an
// optional office filter. Super admin only.
func (s *Service) GetSuperAdminConversations(requesterRole string, officeID *uuid.UUID, limit, offset int) (models.PaginationResult[ConversationView], error) {
	if requesterRole != models.RoleSuperAdmin {
		return models.PaginationResult[ConversationView]{}, apperrors.Forbidden("super admin role required")
	}

	page, err := s.conversations.ListAll(officeID, limit, offset)
	if err != nil {
		return models.PaginationResult[ConversationView]{}, apperrors.Internal("failed to list conversations", err)
	}

	return monitorPage(page, uuid.Nil), nil
}

// GetOfficeConversationsForMonitoring lists an office's conversations for a
// monitoring requester. Managers may only monitor their own office.
func (s *Service) GetOfficeConversationsForMonitoring(requesterID uuid.UUID, requesterRole string, officeID uuid.UUID, limit, offset int) (models.PaginationResult[ConversationView], error) {
	switch requesterRole {
	case models.RoleSuperAdmin:
	case models.RoleManager:
		manager, err := s.users.GetByID(requesterID)
		if err != nil {
			return models.PaginationResult[ConversationView]{}, apperrors.NotFound("manager not found")
		}
		if manager.OfficeID == nil || *manager.OfficeID != officeID {
			return models.PaginationResult[ConversationView]{}, apperrors.Forbidden("managers may only monitor their own office")
		}
	default:
		return models.PaginationResult[ConversationView]{}, apperrors.Forbidden("monitoring requires manager or super admin role")
	}

	page, err := s.conversations.ListByOffice(officeID, nil, limit, offset)
	if err != nil {
		return models.PaginationResult[ConversationView]{}, apperrors.Internal("failed to list office conversations", err)
	}

	return monitorPage(page, requesterID), nil
}

// UpdateConversationRequest carries mutable conversation fields
type UpdateConversationRequest struct {
	Name     *string                      `json:"name"`
	Settings *models.ConversationSettings `json:"settings"`
	Metadata models.Metadata              `json:"metadata"`
	IsPinned *bool                        `json:"is_pinned"`
}

// UpdateConversation updates conversation settings. Requires the admin role
// or the canEditConversation permission.
func (s *Service) UpdateConversation(id, userID uuid.UUID, req UpdateConversationRequest) (*ConversationView, error) {
	conversation, err := s.conversations.GetByID(id)
	if err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}

	participant := activeParticipantOf(conversation, userID)
	if participant == nil {
		return nil, apperrors.NotFound("conversation not found")
	}
	if participant.Role != models.ParticipantRoleAdmin && !participant.Permissions.CanEditConversation {
		return nil, apperrors.Forbidden("you are not allowed to edit this conversation")
	}

	if req.Name != nil {
		conversation.Name = *req.Name
	}
	if req.Settings != nil {
		conversation.Settings = *req.Settings
	}
	if req.Metadata != nil {
		conversation.Metadata = req.Metadata
	}
	if req.IsPinned != nil {
		conversation.IsPinned = *req.IsPinned
	}

	conversation.Participants = nil
	conversation.LastMessage = nil
	if err := s.conversations.Update(conversation); err != nil {
		return nil, apperrors.Internal("failed to update conversation", err)
	}

	view, err := s.hydrateForUser(id, userID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.EmitToConversation(id, EventConversationUpdated, view)
	return view, nil
}

// AddParticipants adds users to a conversation, reactivating soft-removed
// rows instead of duplicating them. Requires canAddMembers.
func (s *Service) AddParticipants(id, actorID uuid.UUID, userIDs []uuid.UUID) (*ConversationView, error) {
	conversation, err := s.conversations.GetByID(id)
	if err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}

	actor := activeParticipantOf(conversation, actorID)
	if actor == nil {
		return nil, apperrors.NotFound("conversation not found")
	}
	if actor.Role != models.ParticipantRoleAdmin && !actor.Permissions.CanAddMembers {
		return nil, apperrors.Forbidden("you are not allowed to add participants")
	}

	actorUser, err := s.users.GetByID(actorID)
	if err != nil {
		return nil, apperrors.NotFound("user not found")
	}

	users, err := s.users.GetByIDs(userIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to load users", err)
	}
	if len(users) != len(dedupe(userIDs)) {
		return nil, apperrors.NotFound("one or more users not found")
	}

	now := time.Now()
	var toCreate []models.ConversationParticipant
	var toReactivate []models.ConversationParticipant
	var addedNames []string
	var addedIDs []uuid.UUID

	for i := range users {
		user := users[i]
		existing, err := s.participants.Get(id, user.ID)
		switch {
		case err == nil && existing.IsActive:
			// already a member, nothing to do
			continue
		case err == nil:
			existing.IsActive = true
			existing.LeftAt = nil
			existing.JoinedAt = now
			existing.AddedBy = &actorID
			existing.Permissions = DefaultPermissions(conversation.Purpose, false)
			toReactivate = append(toReactivate, *existing)
		default:
			toCreate = append(toCreate, models.ConversationParticipant{
				UserID:      user.ID,
				Role:        models.ParticipantRoleMember,
				AddedBy:     &actorID,
				JoinedAt:    now,
				IsActive:    true,
				Permissions: DefaultPermissions(conversation.Purpose, false),
			})
		}
		addedNames = append(addedNames, user.Name)
		addedIDs = append(addedIDs, user.ID)
	}

	if len(addedIDs) == 0 {
		return s.hydrateForUser(id, actorID)
	}

	systemMessage := &models.Message{
		SenderID:    actorID,
		SenderName:  actorUser.Name,
		Type:        models.MessageTypeSystem,
		Content:     fmt.Sprintf("%s added %s", actorUser.Name, strings.Join(addedNames, ", ")),
		DeliveredAt: &now,
	}

	if err := s.participants.AddGraph(id, toCreate, toReactivate, systemMessage); err != nil {
		return nil, apperrors.Internal("failed to add participants", err)
	}

	view, err := s.hydrateForUser(id, actorID)
	if err != nil {
		return nil, err
	}

	for _, userID := range addedIDs {
		s.rooms.JoinUser(id, userID)
		s.notifier.SendNotification(Notification{
			UserID:  userID,
			Type:    NotificationAddedToGroup,
			Message: fmt.Sprintf("%s added you to a conversation", actorUser.Name),
			Details: map[string]interface{}{"conversation_id": id.String()},
		})
	}
	s.dispatcher.EmitToConversation(id, EventParticipantsAdded, map[string]interface{}{
		"conversation_id": id,
		"added_by":        actorID,
		"user_ids":        addedIDs,
	})

	return view, nil
}

// RemoveParticipant soft-removes a participant. Self-removal is always
// allowed; removing others requires canRemoveMembers; the original creator
// can only be removed by leaving on their own.
func (s *Service) RemoveParticipant(id, actorID, targetUserID uuid.UUID) error {
	conversation, err := s.conversations.GetByID(id)
	if err != nil {
		return apperrors.NotFound("conversation not found")
	}

	actor := activeParticipantOf(conversation, actorID)
	if actor == nil {
		return apperrors.NotFound("conversation not found")
	}

	isSelfRemoval := actorID == targetUserID
	if !isSelfRemoval {
		if actor.Role != models.ParticipantRoleAdmin && !actor.Permissions.CanRemoveMembers {
			return apperrors.Forbidden("you are not allowed to remove participants")
		}
		if targetUserID == conversation.CreatedBy {
			return apperrors.Forbidden("the conversation creator cannot be removed")
		}
	}

	target := activeParticipantOf(conversation, targetUserID)
	if target == nil {
		return apperrors.NotFound("participant not found")
	}

	targetUser, err := s.users.GetByID(targetUserID)
	if err != nil {
		return apperrors.NotFound("user not found")
	}

	now := time.Now()
	content := fmt.Sprintf("%s left the conversation", targetUser.Name)
	if !isSelfRemoval {
		actorUser, err := s.users.GetByID(actorID)
		if err != nil {
			return apperrors.NotFound("user not found")
		}
		content = fmt.Sprintf("%s was removed by %s", targetUser.Name, actorUser.Name)
	}

	systemMessage := &models.Message{
		SenderID:    actorID,
		SenderName:  targetUser.Name,
		Type:        models.MessageTypeSystem,
		Content:     content,
		DeliveredAt: &now,
	}

	if err := s.participants.SoftRemove(id, targetUserID, systemMessage); err != nil {
		return apperrors.Internal("failed to remove participant", err)
	}

	s.dispatcher.EmitToConversation(id, EventParticipantRemoved, map[string]interface{}{
		"conversation_id": id,
		"user_id":         targetUserID,
		"removed_by":      actorID,
		"left":            isSelfRemoval,
	})
	s.rooms.LeaveUser(id, targetUserID)

	return nil
}

// SendMessageRequest carries the inputs for SendMessage
type SendMessageRequest struct {
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	FileURL   string     `json:"file_url"`
	FileName  string     `json:"file_name"`
	FileSize  int64      `json:"file_size"`
	FileMime  string     `json:"file_mime"`
	ReplyToID *uuid.UUID `json:"reply_to_id"`
}

// SendMessage persists a message and fans it out to the conversation room.
// The unread counters and last-message pointer move in the same transaction
// as the insert.
func (s *Service) SendMessage(conversationID, senderID uuid.UUID, req SendMessageRequest) (*models.Message, error) {
	participant, err := s.participants.GetActive(conversationID, senderID)
	if err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}
	if !participant.Permissions.CanSendMessages {
		return nil, apperrors.Forbidden("you are not allowed to send messages in this conversation")
	}

	messageType := req.Type
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	switch messageType {
	case models.MessageTypeText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, apperrors.Validation("message content is required")
		}
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeFile:
		if !participant.Permissions.CanSendFiles {
			return nil, apperrors.Forbidden("you are not allowed to send files in this conversation")
		}
		if req.FileURL == "" {
			return nil, apperrors.Validation("file URL is required for file messages")
		}
	case models.MessageTypeSystem:
		return nil, apperrors.Forbidden("system messages cannot be sent by users")
	default:
		return nil, apperrors.Validation("invalid message type: " + messageType)
	}

	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return nil, apperrors.NotFound("sender not found")
	}

	now := time.Now()
	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     sender.Name,
		Type:           messageType,
		Content:        req.Content,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		FileMime:       req.FileMime,
		ReplyToID:      req.ReplyToID,
		DeliveredAt:    &now,
	}

	if err := s.messages.Create(message); err != nil {
		return nil, apperrors.Internal("failed to send message", err)
	}

	s.dispatcher.EmitToConversation(conversationID, EventMessageDelivered, message)
	return message, nil
}

// EditMessage edits a message's content. Only the author may edit, and
// system messages are immutable.
func (s *Service) EditMessage(messageID, editorID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validation("message content is required")
	}

	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, apperrors.NotFound("message not found")
	}
	if message.IsSystem() {
		return nil, apperrors.Forbidden("system messages cannot be edited")
	}
	if message.SenderID != editorID {
		return nil, apperrors.Forbidden("only the author can edit a message")
	}

	now := time.Now()
	message.Content = content
	message.IsEdited = true
	message.EditedAt = &now

	if err := s.messages.Update(message); err != nil {
		return nil, apperrors.Internal("failed to edit message", err)
	}

	s.dispatcher.EmitToConversation(message.ConversationID, EventMessageEdited, message)
	return message, nil
}

// DeleteMessage tombstones a message. The author or a conversation admin may
// delete; the content stays in the row for audit but is hidden from reads.
func (s *Service) DeleteMessage(messageID, deleterID uuid.UUID) error {
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return apperrors.NotFound("message not found")
	}

	if message.SenderID != deleterID {
		participant, err := s.participants.GetActive(message.ConversationID, deleterID)
		if err != nil {
			return apperrors.NotFound("message not found")
		}
		if participant.Role != models.ParticipantRoleAdmin {
			return apperrors.Forbidden("only the author or an admin can delete a message")
		}
	}

	if err := s.messages.SoftDelete(messageID); err != nil {
		return apperrors.Internal("failed to delete message", err)
	}

	// Recipients who had not read the message yet must not keep counting it;
	// without this, deleting an unread message leaves the counter one ahead
	// of a recount.
	if participants, err := s.participants.ListActive(message.ConversationID); err == nil {
		for i := range participants {
			p := &participants[i]
			if p.UserID == message.SenderID || p.UnreadCount <= 0 {
				continue
			}
			if p.LastReadAt != nil && !p.LastReadAt.Before(message.CreatedAt) {
				continue
			}
			p.UnreadCount--
			if err := s.participants.Update(p); err != nil {
				s.log.Warn().Err(err).Str("conversation_id", message.ConversationID.String()).Msg("Failed to adjust unread counter after delete")
			}
		}
	}

	s.dispatcher.EmitToConversation(message.ConversationID, EventMessageDeleted, map[string]interface{}{
		"conversation_id": message.ConversationID,
		"message_id":      messageID,
		"deleted_by":      deleterID,
	})
	return nil
}

// ListMessages lists a conversation's messages for a participant or monitor
func (s *Service) ListMessages(conversationID, requesterID uuid.UUID, requesterRole string, limit, offset int) ([]models.Message, error) {
	if _, err := s.GetConversationByID(conversationID, requesterID, requesterRole); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByConversation(conversationID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("failed to list messages", err)
	}
	return messages, nil
}

// MarkConversationAsRead zeroes the caller's unread counter, stamps their
// read cursor and bulk-stamps read_at on every other sender's unread message
// in the conversation, regardless of scroll position. A read receipt goes to
// the conversation room.
func (s *Service) MarkConversationAsRead(conversationID, userID uuid.UUID) (time.Time, error) {
	if _, err := s.participants.GetActive(conversationID, userID); err != nil {
		return time.Time{}, apperrors.NotFound("conversation not found")
	}

	now := time.Now()
	if err := s.participants.MarkRead(conversationID, userID, now); err != nil {
		return time.Time{}, apperrors.Internal("failed to mark conversation read", err)
	}
	if _, err := s.messages.MarkAllRead(conversationID, userID, now); err != nil {
		return time.Time{}, apperrors.Internal("failed to mark messages read", err)
	}

	s.dispatcher.EmitToConversation(conversationID, EventConversationRead, map[string]interface{}{
		"conversation_id": conversationID,
		"user_id":         userID,
		"read_at":         now,
	})

	return now, nil
}

// MarkMessageRead stamps a single message as read and notifies its sender
func (s *Service) MarkMessageRead(messageID, readerID uuid.UUID) error {
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return apperrors.NotFound("message not found")
	}
	if message.SenderID == readerID {
		return nil
	}
	if _, err := s.participants.GetActive(message.ConversationID, readerID); err != nil {
		return apperrors.NotFound("message not found")
	}
	if message.ReadAt != nil {
		return nil
	}

	now := time.Now()
	message.ReadAt = &now
	if err := s.messages.Update(message); err != nil {
		return apperrors.Internal("failed to mark message read", err)
	}

	s.dispatcher.EmitToUser(message.SenderID, EventMessageRead, map[string]interface{}{
		"conversation_id": message.ConversationID,
		"message_id":      messageID,
		"read_by":         readerID,
		"read_at":         now,
	})
	return nil
}

// ArchiveConversation toggles the archived flag. Any active participant may
// archive or unarchive.
func (s *Service) ArchiveConversation(conversationID, userID uuid.UUID, archived bool) error {
	if _, err := s.participants.GetActive(conversationID, userID); err != nil {
		return apperrors.NotFound("conversation not found")
	}

	if err := s.conversations.SetArchived(conversationID, archived); err != nil {
		return apperrors.Internal("failed to archive conversation", err)
	}

	s.dispatcher.EmitToConversation(conversationID, EventConversationArchived, map[string]interface{}{
		"conversation_id": conversationID,
		"archived":        archived,
		"archived_by":     userID,
	})
	return nil
}

// GetConversationStats returns counters for an active participant
func (s *Service) GetConversationStats(conversationID, userID uuid.UUID) (*models.ConversationStats, error) {
	if _, err := s.participants.GetActive(conversationID, userID); err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}
	stats, err := s.conversations.Stats(conversationID)
	if err != nil {
		return nil, apperrors.Internal("failed to compute conversation stats", err)
	}
	return stats, nil
}

// ActiveConversationIDs exposes the membership lookup the presence registry
// uses to derive room memberships at connect time
func (s *Service) ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.participants.ActiveConversationIDs(userID)
}

// ActivePeerIDs lists users sharing at least one active conversation with
// the given user; presence transitions are broadcast only to these
func (s *Service) ActivePeerIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.participants.ActivePeerIDs(userID)
}

// TotalUnread sums unread counters across the user's conversations
func (s *Service) TotalUnread(userID uuid.UUID) (int64, error) {
	return s.participants.TotalUnread(userID)
}

// IsActiveParticipant reports whether the user actively belongs to the
// conversation. Used by the gateway for room join checks.
func (s *Service) IsActiveParticipant(conversationID, userID uuid.UUID) bool {
	_, err := s.participants.GetActive(conversationID, userID)
	return err == nil
}

// hydrateForUser reloads the conversation and projects it for the user
func (s *Service) hydrateForUser(conversationID, userID uuid.UUID) (*ConversationView, error) {
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, apperrors.NotFound("conversation not found")
	}
	if p := activeParticipantOf(conversation, userID); p != nil {
		return participantView(conversation, p), nil
	}
	return monitorView(conversation), nil
}

func activeParticipantOf(conversation *models.Conversation, userID uuid.UUID) *models.ConversationParticipant {
	for i := range conversation.Participants {
		if conversation.Participants[i].UserID == userID && conversation.Participants[i].IsActive {
			return &conversation.Participants[i]
		}
	}
	return nil
}

func monitorPage(page models.PaginationResult[models.Conversation], viewerID uuid.UUID) models.PaginationResult[ConversationView] {
	views := make([]ConversationView, 0, len(page.Data))
	for i := range page.Data {
		if viewerID != uuid.Nil {
			if p := activeParticipantOf(&page.Data[i], viewerID); p != nil {
				views = append(views, *participantView(&page.Data[i], p))
				continue
			}
		}
		views = append(views, *monitorView(&page.Data[i]))
	}
	return models.PaginationResult[ConversationView]{
		Data:       views,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	}
}

func sortedPair(a, b uuid.UUID) [2]uuid.UUID {
	if strings.Compare(a.String(), b.String()) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeWith(ids []uuid.UUID, required uuid.UUID) []uuid.UUID {
	out := dedupe(append([]uuid.UUID{}, ids...))
	for _, id := range out {
		if id == required {
			sortIDs(out)
			return out
		}
	}
	out = append(out, required)
	sortIDs(out)
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return strings.Compare(ids[i].String(), ids[j].String()) < 0
	})
}

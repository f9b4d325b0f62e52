package chat

import (
	"time"

	"educrm/internal/repo"
	"educrm/pkg/models"

	"github.com/google/uuid"
)

// ConversationStore is the persistence gateway for conversation rows
type ConversationStore interface {
	GetByID(id uuid.UUID) (*models.Conversation, error)
	CreateGraph(conversation *models.Conversation, participants []models.ConversationParticipant, systemMessage *models.Message) error
	FindActiveDirect(purpose string) ([]models.Conversation, error)
	ListForUser(userID uuid.UUID, filters repo.ConversationFilters, limit, offset int) (models.PaginationResult[models.Conversation], error)
	ListByOffice(officeID uuid.UUID, purposes []string, limit, offset int) (models.PaginationResult[models.Conversation], error)
	ListAll(officeID *uuid.UUID, limit, offset int) (models.PaginationResult[models.Conversation], error)
	Update(conversation *models.Conversation) error
	SetArchived(id uuid.UUID, archived bool) error
	Stats(id uuid.UUID) (*models.ConversationStats, error)
}

// ParticipantStore is the persistence gateway for participant rows
type ParticipantStore interface {
	Get(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error)
	GetActive(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error)
	ListActive(conversationID uuid.UUID) ([]models.ConversationParticipant, error)
	ActiveUserIDs(conversationID uuid.UUID) ([]uuid.UUID, error)
	ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error)
	ActivePeerIDs(userID uuid.UUID) ([]uuid.UUID, error)
	Update(participant *models.ConversationParticipant) error
	AddGraph(conversationID uuid.UUID, toCreate []models.ConversationParticipant, toReactivate []models.ConversationParticipant, systemMessage *models.Message) error
	SoftRemove(conversationID, userID uuid.UUID, systemMessage *models.Message) error
	MarkRead(conversationID, userID uuid.UUID, readAt time.Time) error
	TotalUnread(userID uuid.UUID) (int64, error)
}

// MessageStore is the persistence gateway for message rows
type MessageStore interface {
	GetByID(id uuid.UUID) (*models.Message, error)
	Create(message *models.Message) error
	Update(message *models.Message) error
	SoftDelete(id uuid.UUID) error
	ListByConversation(conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
	MarkAllRead(conversationID, readerID uuid.UUID, readAt time.Time) (int64, error)
}

// UserStore exposes the user lookups the conversation service needs
type UserStore interface {
	GetByID(id uuid.UUID) (*models.User, error)
	GetByIDs(ids []uuid.UUID) ([]models.User, error)
}

// Dispatcher fans events out to live connections. All methods are
// fire-and-forget; a dispatch to nobody is not an error.
type Dispatcher interface {
	EmitToConversation(conversationID uuid.UUID, event string, data interface{})
	EmitToConversationExcept(conversationID, exceptUserID uuid.UUID, event string, data interface{})
	EmitToUser(userID uuid.UUID, event string, data interface{})
	EmitToUsers(userIDs []uuid.UUID, event string, data interface{})
	Broadcast(event string, data interface{})
}

// RoomManager keeps the live room memberships in sync with participant
// changes. Only the presence registry mutates the underlying maps.
type RoomManager interface {
	JoinUser(conversationID, userID uuid.UUID)
	LeaveUser(conversationID, userID uuid.UUID)
}

// Notification is the payload handed to the notification sender
type Notification struct {
	UserID  uuid.UUID
	Type    string
	Message string
	Details map[string]interface{}
}

// Notifier delivers notifications asynchronously. Implementations log their
// own failures; a failed notification never fails the triggering operation.
type Notifier interface {
	SendNotification(n Notification)
}

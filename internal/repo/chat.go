package repo

import (
	"time"

	"educrm/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationFilters narrows conversation listings
type ConversationFilters struct {
	Purpose   string
	Type      string
	Archived  *bool
	OfficeID  *uuid.UUID
	Search    string
}

// ConversationRepository handles conversation data access
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetByID gets a conversation with participants and last message preloaded
func (r *ConversationRepository) GetByID(id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.Preload("Participants").Preload("Participants.User").Preload("LastMessage").
		Where("id = ?", id).First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateGraph creates a conversation together with its participant rows and
// an optional system message in a single transaction, so a partial failure
// never leaves a conversation without its participants.
func (r *ConversationRepository) CreateGraph(conversation *models.Conversation, participants []models.ConversationParticipant, systemMessage *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ConversationID = conversation.ID
			if err := tx.Create(&participants[i]).Error; err != nil {
				return err
			}
		}
		if systemMessage != nil {
			systemMessage.ConversationID = conversation.ID
			if err := tx.Create(systemMessage).Error; err != nil {
				return err
			}
			now := time.Now()
			if err := tx.Model(conversation).
				Updates(map[string]interface{}{"last_message_id": systemMessage.ID, "last_message_at": now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindActiveDirect lists active direct conversations of a purpose with their
// active participants preloaded, for the in-memory pair match
func (r *ConversationRepository) FindActiveDirect(purpose string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.Preload("Participants", "is_active = ?", true).
		Where("type = ? AND purpose = ? AND is_active = ?", models.ConversationTypeDirect, purpose, true).
		Find(&conversations).Error
	return conversations, err
}

// ListForUser lists conversations where the user is an active participant
func (r *ConversationRepository) ListForUser(userID uuid.UUID, filters ConversationFilters, limit, offset int) (models.PaginationResult[models.Conversation], error) {
	base := r.db.Model(&models.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.is_active = ? AND conversations.is_active = ?", userID, true, true)
	base = applyFilters(base, filters)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	var conversations []models.Conversation
	err := base.Preload("Participants", "is_active = ?", true).Preload("Participants.User").Preload("LastMessage").
		Order("conversations.last_message_at DESC NULLS LAST").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	return models.NewPaginationResult(conversations, total, limit, offset), nil
}

// ListByOffice lists conversations owned by an office, optionally restricted
// to a set of purposes (manager monitoring scope)
func (r *ConversationRepository) ListByOffice(officeID uuid.UUID, purposes []string, limit, offset int) (models.PaginationResult[models.Conversation], error) {
	base := r.db.Model(&models.Conversation{}).
		Where("office_id = ? AND is_active = ?", officeID, true)
	if len(purposes) > 0 {
		base = base.Where("purpose IN ?", purposes)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	var conversations []models.Conversation
	err := base.Preload("Participants", "is_active = ?", true).Preload("Participants.User").Preload("LastMessage").
		Order("last_message_at DESC NULLS LAST").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	return models.NewPaginationResult(conversations, total, limit, offset), nil
}

// ListAll lists all active conversations across offices, optionally filtered
// to a single office (super admin monitoring scope)
func (r *ConversationRepository) ListAll(officeID *uuid.UUID, limit, offset int) (models.PaginationResult[models.Conversation], error) {
	base := r.db.Model(&models.Conversation{}).Where("is_active = ?", true)
	if officeID != nil {
		base = base.Where("office_id = ?", *officeID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	var conversations []models.Conversation
	err := base.Preload("Participants", "is_active = ?", true).Preload("Participants.User").Preload("LastMessage").
		Order("last_message_at DESC NULLS LAST").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	return models.NewPaginationResult(conversations, total, limit, offset), nil
}

// Update updates a conversation
func (r *ConversationRepository) Update(conversation *models.Conversation) error {
	return r.db.Save(conversation).Error
}

// SetArchived toggles the archived flag
func (r *ConversationRepository) SetArchived(id uuid.UUID, archived bool) error {
	result := r.db.Model(&models.Conversation{}).Where("id = ?", id).Update("is_archived", archived)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Stats returns message and participant counts for a conversation
func (r *ConversationRepository) Stats(id uuid.UUID) (*models.ConversationStats, error) {
	stats := &models.ConversationStats{MessagesByType: make(map[string]int64)}

	if err := r.db.Model(&models.Message{}).
		Where("conversation_id = ?", id).
		Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}

	if err := r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND is_active = ?", id, true).
		Count(&stats.ActiveParticipants).Error; err != nil {
		return nil, err
	}

	type typeCount struct {
		Type  string
		Count int64
	}
	var byType []typeCount
	if err := r.db.Model(&models.Message{}).
		Select("type, COUNT(*) as count").
		Where("conversation_id = ?", id).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, tc := range byType {
		stats.MessagesByType[tc.Type] = tc.Count
	}

	return stats, nil
}

func applyFilters(q *gorm.DB, filters ConversationFilters) *gorm.DB {
	if filters.Purpose != "" {
		q = q.Where("conversations.purpose = ?", filters.Purpose)
	}
	if filters.Type != "" {
		q = q.Where("conversations.type = ?", filters.Type)
	}
	if filters.Archived != nil {
		q = q.Where("conversations.is_archived = ?", *filters.Archived)
	}
	if filters.OfficeID != nil {
		q = q.Where("conversations.office_id = ?", *filters.OfficeID)
	}
	if filters.Search != "" {
		q = q.Where("conversations.name ILIKE ?", "%"+filters.Search+"%")
	}
	return q
}

// ParticipantRepository handles conversation participant data access
type ParticipantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Get gets the participant row for a user in a conversation, active or not
func (r *ParticipantRepository) Get(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	err := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetActive gets the active participant row for a user in a conversation
func (r *ParticipantRepository) GetActive(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	err := r.db.Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// ListActive lists active participants of a conversation with users preloaded
func (r *ParticipantRepository) ListActive(conversationID uuid.UUID) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := r.db.Preload("User").
		Where("conversation_id = ? AND is_active = ?", conversationID, true).
		Find(&participants).Error
	return participants, err
}

// ActiveUserIDs lists the user ids of active participants of a conversation
func (r *ParticipantRepository) ActiveUserIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND is_active = ?", conversationID, true).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ActiveConversationIDs lists the conversations a user actively belongs to
func (r *ParticipantRepository) ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.ConversationParticipant{}).
		Joins("JOIN conversations c ON c.id = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ? AND conversation_participants.is_active = ? AND c.is_active = ?", userID, true, true).
		Pluck("conversation_participants.conversation_id", &ids).Error
	return ids, err
}

// ActivePeerIDs lists the distinct users who share at least one active
// conversation with the given user
func (r *ParticipantRepository) ActivePeerIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.ConversationParticipant{}).
		Distinct("user_id").
		Where("user_id != ? AND is_active = ?", userID, true).
		Where("conversation_id IN (?)", r.db.Model(&models.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ? AND is_active = ?", userID, true)).
		Pluck("user_id", &ids).Error
	return ids, err
}

// Create creates a participant row
func (r *ParticipantRepository) Create(participant *models.ConversationParticipant) error {
	return r.db.Create(participant).Error
}

// Update updates a participant row
func (r *ParticipantRepository) Update(participant *models.ConversationParticipant) error {
	return r.db.Save(participant).Error
}

// AddGraph creates and reactivates participant rows plus the accompanying
// system message in one transaction
func (r *ParticipantRepository) AddGraph(conversationID uuid.UUID, toCreate []models.ConversationParticipant, toReactivate []models.ConversationParticipant, systemMessage *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := range toCreate {
			toCreate[i].ConversationID = conversationID
			if err := tx.Create(&toCreate[i]).Error; err != nil {
				return err
			}
		}
		for i := range toReactivate {
			if err := tx.Save(&toReactivate[i]).Error; err != nil {
				return err
			}
		}
		if systemMessage != nil {
			systemMessage.ConversationID = conversationID
			if err := tx.Create(systemMessage).Error; err != nil {
				return err
			}
			now := time.Now()
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
				Updates(map[string]interface{}{"last_message_id": systemMessage.ID, "last_message_at": now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftRemove deactivates a participant and records the departure, optionally
// persisting the system message in the same transaction
func (r *ParticipantRepository) SoftRemove(conversationID, userID uuid.UUID, systemMessage *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
			Updates(map[string]interface{}{"is_active": false, "left_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if systemMessage != nil {
			systemMessage.ConversationID = conversationID
			if err := tx.Create(systemMessage).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
				Updates(map[string]interface{}{"last_message_id": systemMessage.ID, "last_message_at": now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkRead zeroes the unread counter and stamps last_read_at for a reader
func (r *ParticipantRepository) MarkRead(conversationID, userID uuid.UUID, readAt time.Time) error {
	return r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Updates(map[string]interface{}{"unread_count": 0, "last_read_at": readAt}).Error
}

// TotalUnread sums the unread counters across a user's active conversations
func (r *ParticipantRepository) TotalUnread(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.ConversationParticipant{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&count).Error
	return count, err
}

// MessageRepository handles message data access
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// GetByID gets a message by ID
func (r *MessageRepository) GetByID(id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := r.db.Preload("Sender").Where("id = ?", id).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// Create inserts a message and updates the denormalized projections
// (conversation last-message pointer, other participants' unread counters)
// in the same transaction, so the cached counters cannot drift from the
// write that changed them.
func (r *MessageRepository) Create(message *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]interface{}{"last_message_id": message.ID, "last_message_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id != ? AND is_active = ?", message.ConversationID, message.SenderID, true).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

// Update updates a message
func (r *MessageRepository) Update(message *models.Message) error {
	return r.db.Save(message).Error
}

// SoftDelete tombstones a message; the row is kept for audit
func (r *MessageRepository) SoftDelete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(&models.Message{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByConversation lists messages by conversation ID, newest first
func (r *MessageRepository) ListByConversation(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, err
}

// MarkAllRead stamps read_at on every unread message from other senders in a
// conversation and returns how many were touched
func (r *MessageRepository) MarkAllRead(conversationID, readerID uuid.UUID, readAt time.Time) (int64, error) {
	result := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND read_at IS NULL", conversationID, readerID).
		Update("read_at", readAt)
	return result.RowsAffected, result.Error
}

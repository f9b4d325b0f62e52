package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation types
const (
	ConversationTypeDirect  = "direct"
	ConversationTypeGroup   = "group"
	ConversationTypeSupport = "support"
)

// Conversation purposes
const (
	PurposeLeadConsultant      = "lead_consultant"
	PurposeManagerConsultant   = "manager_consultant"
	PurposeManagerReceptionist = "manager_receptionist"
	PurposeManagerLead         = "manager_lead"
	PurposeGeneral             = "general"
	PurposeSupport             = "support"
)

// Participant roles
const (
	ParticipantRoleAdmin     = "admin"
	ParticipantRoleMember    = "member"
	ParticipantRoleModerator = "moderator"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// ParticipantPermissions controls what a participant may do in a conversation
type ParticipantPermissions struct {
	CanSendMessages     bool `json:"canSendMessages"`
	CanSendFiles        bool `json:"canSendFiles"`
	CanAddMembers       bool `json:"canAddMembers"`
	CanRemoveMembers    bool `json:"canRemoveMembers"`
	CanEditConversation bool `json:"canEditConversation"`
}

// ConversationSettings holds per-conversation UI preferences
type ConversationSettings struct {
	Notifications bool   `json:"notifications"`
	Sound         bool   `json:"sound"`
	Theme         string `json:"theme"`
}

// DefaultConversationSettings returns the settings applied to new conversations
func DefaultConversationSettings() ConversationSettings {
	return ConversationSettings{Notifications: true, Sound: true, Theme: "default"}
}

// Metadata is an open key/value map persisted as JSONB
type Metadata map[string]interface{}

// Valuer/Scanner implementations for JSONB columns

func (p ParticipantPermissions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *ParticipantPermissions) Scan(value interface{}) error {
	if value == nil {
		*p = ParticipantPermissions{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, p)
}

func (s ConversationSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ConversationSettings) Scan(value interface{}) error {
	if value == nil {
		*s = ConversationSettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(Metadata{})
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Conversation represents a direct, group or support conversation.
// Conversations are never hard-deleted, only archived.
type Conversation struct {
	BaseModel
	Type          string               `gorm:"not null;default:'direct';index:idx_conversations_direct_lookup" json:"type"`
	Purpose       string               `gorm:"not null;default:'general';index:idx_conversations_direct_lookup" json:"purpose"`
	Name          string               `json:"name"`
	OfficeID      *uuid.UUID           `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"office_id"`
	CreatedBy     uuid.UUID            `gorm:"type:uuid;not null;constraint:OnDelete:RESTRICT" json:"created_by"`
	LastMessageID *uuid.UUID           `gorm:"type:uuid" json:"last_message_id"`
	LastMessageAt *time.Time           `gorm:"index" json:"last_message_at"`
	IsActive      bool                 `gorm:"default:true;index:idx_conversations_direct_lookup" json:"is_active"`
	IsArchived    bool                 `gorm:"default:false" json:"is_archived"`
	IsPinned      bool                 `gorm:"default:false" json:"is_pinned"`
	Settings      ConversationSettings `gorm:"type:jsonb;default:'{}'" json:"settings"`
	Metadata      Metadata             `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	// Relations
	Office       *Office                   `gorm:"foreignKey:OfficeID" json:"office,omitempty"`
	Creator      *User                     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	LastMessage  *Message                  `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
}

// ConversationParticipant is the join entity per (conversation, user).
// Removal is always soft: IsActive=false plus LeftAt, never row deletion,
// so history and re-join semantics survive.
type ConversationParticipant struct {
	BaseModel
	ConversationID uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:idx_participants_conversation_user;constraint:OnDelete:RESTRICT" json:"conversation_id"`
	UserID         uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:idx_participants_conversation_user;constraint:OnDelete:RESTRICT" json:"user_id"`
	Role           string                 `gorm:"not null;default:'member'" json:"role"` // admin, member, moderator
	AddedBy        *uuid.UUID             `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"added_by"`
	JoinedAt       time.Time              `gorm:"not null" json:"joined_at"`
	LeftAt         *time.Time             `json:"left_at"`
	LastReadAt     *time.Time             `json:"last_read_at"`
	IsActive       bool                   `gorm:"default:true" json:"is_active"`
	IsMuted        bool                   `gorm:"default:false" json:"is_muted"`
	IsPinned       bool                   `gorm:"default:false" json:"is_pinned"`
	UnreadCount    int                    `gorm:"default:0" json:"unread_count"`
	Permissions    ParticipantPermissions `gorm:"type:jsonb;default:'{}'" json:"permissions"`

	// Relations
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Message represents a message in a conversation. Deleted messages keep
// their row as a tombstone (gorm soft delete) and are hidden from reads.
type Message struct {
	BaseModel
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"sender_id"`
	SenderName     string     `gorm:"size:255" json:"sender_name"`
	Type           string     `gorm:"not null;default:'text'" json:"type"` // text, image, video, file, system
	Content        string     `gorm:"type:text" json:"content"`
	FileURL        string     `json:"file_url,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	FileMime       string     `json:"file_mime,omitempty"`
	ReplyToID      *uuid.UUID `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"reply_to_id"`
	IsEdited       bool       `gorm:"default:false" json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	ReadAt         *time.Time `json:"read_at"`

	// Relations
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	Sender       *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReplyTo      *Message      `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
}

// IsSystem reports whether the message was synthesized by the service on a
// lifecycle event rather than authored by a user.
func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

// ConversationStats summarizes a conversation for the stats endpoint
type ConversationStats struct {
	TotalMessages      int64            `json:"total_messages"`
	ActiveParticipants int64            `json:"active_participants"`
	MessagesByType     map[string]int64 `json:"messages_by_type"`
}

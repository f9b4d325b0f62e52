package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound socket events. The names are the wire contract and are preserved
// verbatim for client compatibility.
const (
	EventSendMessage          = "send_message"
	EventEditMessage          = "edit_message"
	EventDeleteMessage        = "delete_message"
	EventMarkMessageRead      = "mark_message_read"
	EventJoinConversation     = "join_conversation"
	EventLeaveConversation    = "leave_conversation"
	EventCreateConversation   = "create_conversation"
	EventTypingStart          = "typing_start"
	EventTypingStop           = "typing_stop"
	EventUpdatePresence       = "update_presence"
	EventGetOnlineUsers       = "get_online_users"
	EventFileUploadStart      = "file_upload_start"
	EventFileUploadProgress   = "file_upload_progress"
	EventFileUploadComplete   = "file_upload_complete"
	EventMarkNotificationRead = "mark_notification_read"
	EventGetUnreadCount       = "get_unread_count"
	EventMonitorConversation  = "monitor_conversation"
	EventBroadcastAnnounce    = "broadcast_announcement"
)

// Outbound socket events emitted by the gateway and presence layer.
// Conversation lifecycle events are declared next to the service that emits
// them (internal/chat).
const (
	EventConnectionEstablished = "connection_established"
	EventUserTypingStart       = "user_typing_start"
	EventUserTypingStop        = "user_typing_stop"
	EventUserStatusChanged     = "user_status_changed"
	EventUserPresenceChanged   = "user_presence_changed"
	EventNotificationReceived  = "notification_received"
	EventSystemAnnouncement    = "system_announcement"
	EventForceDisconnect       = "force_disconnect"
	EventError                 = "error"
	EventOnlineUsers           = "online_users"
	EventUnreadCount           = "unread_count"
	EventFileUploadReady       = "file_upload_ready"
)

// Presence statuses
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// Event is the outbound wire frame
type Event struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientEvent is the inbound wire frame; payloads stay raw until the
// per-event schema is known
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrorPayload is the structured error envelope sent back to the sender of a
// failing event. Other participants never see it.
type ErrorPayload struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the user-visible message and HTTP-style code
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Per-event payload schemas. Required fields are enforced with validator
// tags before any service call is made.

type sendMessagePayload struct {
	ConversationID uuid.UUID  `json:"conversation_id" validate:"required"`
	Type           string     `json:"type"`
	Content        string     `json:"content"`
	FileURL        string     `json:"file_url"`
	FileName       string     `json:"file_name"`
	FileSize       int64      `json:"file_size"`
	FileMime       string     `json:"file_mime"`
	ReplyToID      *uuid.UUID `json:"reply_to_id"`
}

type editMessagePayload struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
	Content   string    `json:"content" validate:"required"`
}

type deleteMessagePayload struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
}

type markReadPayload struct {
	MessageID      *uuid.UUID `json:"message_id"`
	ConversationID *uuid.UUID `json:"conversation_id"`
}

type conversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
}

type createConversationPayload struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1"`
	Type           string      `json:"type" validate:"required"`
	Purpose        string      `json:"purpose" validate:"required"`
	Name           string      `json:"name"`
	OfficeID       *uuid.UUID  `json:"office_id"`
}

type updatePresencePayload struct {
	Status string `json:"status" validate:"required,oneof=online away busy offline"`
}

type fileUploadStartPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	FileName       string    `json:"file_name" validate:"required"`
	FileSize       int64     `json:"file_size" validate:"required,gt=0"`
	MimeType       string    `json:"mime_type" validate:"required"`
}

type fileUploadProgressPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	UploadID       string    `json:"upload_id" validate:"required"`
	Progress       int       `json:"progress" validate:"min=0,max=100"`
}

type fileUploadCompletePayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	UploadID       string    `json:"upload_id"`
	FileURL        string    `json:"file_url" validate:"required"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	FileMime       string    `json:"file_mime"`
	Content        string    `json:"content"`
}

type markNotificationReadPayload struct {
	NotificationID uuid.UUID `json:"notification_id" validate:"required"`
}

type broadcastAnnouncementPayload struct {
	Message string `json:"message" validate:"required"`
}

package chat

import (
	"time"

	"educrm/pkg/models"
)

// View modes discriminate who is looking at a conversation. Managers and
// super admins who are not participants get a read-only monitor projection
// with synthetic viewer fields instead of a mutated participant row.
const (
	ViewModeParticipant = "participant"
	ViewModeMonitor     = "monitor"
)

// ViewerInfo carries the per-viewer fields of a conversation projection
type ViewerInfo struct {
	Mode        string                        `json:"mode"` // participant or monitor
	Role        string                        `json:"role"`
	UnreadCount int                           `json:"unread_count"`
	LastReadAt  *time.Time                    `json:"last_read_at,omitempty"`
	Permissions models.ParticipantPermissions `json:"permissions"`
}

// ConversationView is a conversation hydrated for one specific viewer
type ConversationView struct {
	models.Conversation
	Viewer ViewerInfo `json:"viewer"`
}

// participantView projects a conversation for one of its active participants
func participantView(conversation *models.Conversation, participant *models.ConversationParticipant) *ConversationView {
	return &ConversationView{
		Conversation: *conversation,
		Viewer: ViewerInfo{
			Mode:        ViewModeParticipant,
			Role:        participant.Role,
			UnreadCount: participant.UnreadCount,
			LastReadAt:  participant.LastReadAt,
			Permissions: participant.Permissions,
		},
	}
}

// monitorView projects a conversation for a manager or super admin who is
// not a participant. Unread is always zero: monitors have no read cursor.
func monitorView(conversation *models.Conversation) *ConversationView {
	return &ConversationView{
		Conversation: *conversation,
		Viewer: ViewerInfo{
			Mode: ViewModeMonitor,
			Role: "monitor",
		},
	}
}

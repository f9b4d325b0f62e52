package chat

import (
	"educrm/pkg/models"
)

// DefaultPermissions is the single source of truth for authorization
// defaults. Admins get the full permission set. Non-admins always get the
// send permissions; only open purposes (general, support) additionally let
// them add members.
func DefaultPermissions(purpose string, isAdmin bool) models.ParticipantPermissions {
	if isAdmin {
		return models.ParticipantPermissions{
			CanSendMessages:     true,
			CanSendFiles:        true,
			CanAddMembers:       true,
			CanRemoveMembers:    true,
			CanEditConversation: true,
		}
	}

	permissions := models.ParticipantPermissions{
		CanSendMessages: true,
		CanSendFiles:    true,
	}

	switch purpose {
	case models.PurposeGeneral, models.PurposeSupport:
		permissions.CanAddMembers = true
	}

	return permissions
}

// validConversationType reports whether t is a known conversation type
func validConversationType(t string) bool {
	switch t {
	case models.ConversationTypeDirect, models.ConversationTypeGroup, models.ConversationTypeSupport:
		return true
	}
	return false
}

// validPurpose reports whether p is a known conversation purpose
func validPurpose(p string) bool {
	switch p {
	case models.PurposeLeadConsultant, models.PurposeManagerConsultant, models.PurposeManagerReceptionist,
		models.PurposeManagerLead, models.PurposeGeneral, models.PurposeSupport:
		return true
	}
	return false
}

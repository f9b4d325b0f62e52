package chat

import (
	"testing"

	"educrm/pkg/models"
)

func TestDefaultPermissions(t *testing.T) {
	tests := []struct {
		name    string
		purpose string
		isAdmin bool
		want    models.ParticipantPermissions
	}{
		{
			name:    "admin gets everything regardless of purpose",
			purpose: models.PurposeLeadConsultant,
			isAdmin: true,
			want: models.ParticipantPermissions{
				CanSendMessages:     true,
				CanSendFiles:        true,
				CanAddMembers:       true,
				CanRemoveMembers:    true,
				CanEditConversation: true,
			},
		},
		{
			name:    "member in lead_consultant can only send",
			purpose: models.PurposeLeadConsultant,
			isAdmin: false,
			want: models.ParticipantPermissions{
				CanSendMessages: true,
				CanSendFiles:    true,
			},
		},
		{
			name:    "member in manager_consultant can only send",
			purpose: models.PurposeManagerConsultant,
			isAdmin: false,
			want: models.ParticipantPermissions{
				CanSendMessages: true,
				CanSendFiles:    true,
			},
		},
		{
			name:    "member in general may also add members",
			purpose: models.PurposeGeneral,
			isAdmin: false,
			want: models.ParticipantPermissions{
				CanSendMessages: true,
				CanSendFiles:    true,
				CanAddMembers:   true,
			},
		},
		{
			name:    "member in support may also add members",
			purpose: models.PurposeSupport,
			isAdmin: false,
			want: models.ParticipantPermissions{
				CanSendMessages: true,
				CanSendFiles:    true,
				CanAddMembers:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultPermissions(tt.purpose, tt.isAdmin)
			if got != tt.want {
				t.Errorf("DefaultPermissions(%q, %v) = %+v, want %+v", tt.purpose, tt.isAdmin, got, tt.want)
			}
		})
	}
}

func TestValidConversationType(t *testing.T) {
	for _, valid := range []string{"direct", "group", "support"} {
		if !validConversationType(valid) {
			t.Errorf("validConversationType(%q) = false, want true", valid)
		}
	}
	for _, invalid := range []string{"", "channel", "DIRECT"} {
		if validConversationType(invalid) {
			t.Errorf("validConversationType(%q) = true, want false", invalid)
		}
	}
}

func TestValidPurpose(t *testing.T) {
	for _, valid := range []string{
		"lead_consultant", "manager_consultant", "manager_receptionist",
		"manager_lead", "general", "support",
	} {
		if !validPurpose(valid) {
			t.Errorf("validPurpose(%q) = false, want true", valid)
		}
	}
	if validPurpose("sales") {
		t.Error("validPurpose(\"sales\") = true, want false")
	}
}

package ws

import (
	"testing"

	"github.com/google/uuid"
)

func testClient(userID uuid.UUID) *Client {
	return newClient(nil, userID, "consultant", nil, nil)
}

func TestRegisterReportsFirstConnectionOnly(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	convID := uuid.New()

	c1 := testClient(userID)
	c2 := testClient(userID)

	if first := hub.Register(c1, []uuid.UUID{convID}); !first {
		t.Fatal("first connection should report the offline to online transition")
	}
	if first := hub.Register(c2, []uuid.UUID{convID}); first {
		t.Fatal("second connection must not report a transition")
	}

	if !hub.IsOnline(userID) {
		t.Fatal("user should be online")
	}
	if got := hub.LiveConnectionCount(userID); got != 2 {
		t.Fatalf("connection count = %d, want 2", got)
	}
	if got := len(hub.ConnectionsForConversation(convID)); got != 2 {
		t.Fatalf("room size = %d, want 2", got)
	}
}

func TestUnregisterReportsLastConnectionOnly(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	convID := uuid.New()

	c1 := testClient(userID)
	c2 := testClient(userID)
	hub.Register(c1, []uuid.UUID{convID})
	hub.Register(c2, []uuid.UUID{convID})

	if last := hub.Unregister(c1); last {
		t.Fatal("a connection remains, no transition yet")
	}
	if !hub.IsOnline(userID) {
		t.Fatal("user should still be online")
	}
	if last := hub.Unregister(c2); !last {
		t.Fatal("last connection should report the online to offline transition")
	}
	if hub.IsOnline(userID) {
		t.Fatal("user should be offline")
	}
	if got := len(hub.ConnectionsForConversation(convID)); got != 0 {
		t.Fatalf("room size = %d, want 0", got)
	}

	// Unregistering an unknown connection is a no-op
	if last := hub.Unregister(c2); last {
		t.Fatal("double unregister must not report a transition")
	}
}

func TestRoomMembershipFollowsParticipation(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	convID := uuid.New()

	c1 := testClient(userID)
	c2 := testClient(userID)
	hub.Register(c1, nil)
	hub.Register(c2, nil)

	// Becoming a participant joins every live connection
	hub.JoinUser(convID, userID)
	if got := len(hub.ConnectionsForConversation(convID)); got != 2 {
		t.Fatalf("room size = %d, want 2", got)
	}

	// Removal clears every live connection
	hub.LeaveUser(convID, userID)
	if got := len(hub.ConnectionsForConversation(convID)); got != 0 {
		t.Fatalf("room size = %d, want 0", got)
	}

	// Per-connection join affects only that connection
	hub.JoinRoom(c1, convID)
	if got := len(hub.ConnectionsForConversation(convID)); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}
	hub.LeaveRoom(c1, convID)
	if _, ok := hub.rooms[convID]; ok {
		t.Fatal("empty room should be deleted")
	}
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	convA := uuid.New()
	convB := uuid.New()

	c := testClient(userID)
	hub.Register(c, []uuid.UUID{convA, convB})
	hub.Unregister(c)

	if len(hub.rooms) != 0 {
		t.Fatalf("rooms not cleaned up: %d left", len(hub.rooms))
	}
	if len(hub.connRooms) != 0 {
		t.Fatalf("connection room index not cleaned up: %d left", len(hub.connRooms))
	}
}

func TestOnlineAmong(t *testing.T) {
	hub := NewHub()
	online := uuid.New()
	offline := uuid.New()

	hub.Register(testClient(online), nil)

	got := hub.OnlineAmong([]uuid.UUID{online, offline})
	if len(got) != 1 || got[0] != online {
		t.Fatalf("OnlineAmong = %v, want only the online user", got)
	}
}

package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func typingFixture(ttl time.Duration) (*Hub, *TypingCoordinator, *Client, *Client, uuid.UUID) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	typing := NewTypingCoordinator(router, ttl)
	convID := uuid.New()

	typist := testClient(uuid.New())
	peer := testClient(uuid.New())
	hub.Register(typist, []uuid.UUID{convID})
	hub.Register(peer, []uuid.UUID{convID})

	return hub, typing, typist, peer, convID
}

func waitForEvent(t *testing.T, c *Client, event string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.send:
			if ev.Event == event {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestTypingStartNotifiesOthersNotTypist(t *testing.T) {
	_, typing, typist, peer, convID := typingFixture(time.Minute)

	typing.Start(convID, typist.UserID)

	if got := drain(typist); len(got) != 0 {
		t.Fatalf("typist should not see their own indicator, got %+v", got)
	}
	got := drain(peer)
	if len(got) != 1 || got[0].Event != EventUserTypingStart {
		t.Fatalf("peer events = %+v, want one user_typing_start", got)
	}

	users := typing.TypingUsers(convID)
	if len(users) != 1 || users[0] != typist.UserID {
		t.Fatalf("typing users = %v", users)
	}
}

func TestTypingStartIsNotRepeatedWhileActive(t *testing.T) {
	_, typing, typist, peer, convID := typingFixture(time.Minute)

	typing.Start(convID, typist.UserID)
	typing.Start(convID, typist.UserID)
	typing.Start(convID, typist.UserID)

	starts := 0
	for _, ev := range drain(peer) {
		if ev.Event == EventUserTypingStart {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("got %d user_typing_start events, want 1", starts)
	}
}

func TestTypingAutoExpires(t *testing.T) {
	_, typing, typist, peer, convID := typingFixture(20 * time.Millisecond)

	typing.Start(convID, typist.UserID)
	waitForEvent(t, peer, EventUserTypingStart)
	waitForEvent(t, peer, EventUserTypingStop)

	if users := typing.TypingUsers(convID); len(users) != 0 {
		t.Fatalf("typing state should be gone, got %v", users)
	}
	if _, ok := typing.typing[convID]; ok {
		t.Fatal("empty conversation entry should be deleted")
	}
}

func TestFreshStartSupersedesPendingExpiry(t *testing.T) {
	_, typing, typist, peer, convID := typingFixture(60 * time.Millisecond)

	typing.Start(convID, typist.UserID)
	time.Sleep(40 * time.Millisecond)
	typing.Start(convID, typist.UserID) // reset the clock
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first start, but only 40ms after the refresh
	if users := typing.TypingUsers(convID); len(users) != 1 {
		t.Fatalf("typing should still be active after refresh, got %v", users)
	}
	waitForEvent(t, peer, EventUserTypingStop)
}

func TestTypingStopIsIdempotent(t *testing.T) {
	_, typing, typist, peer, convID := typingFixture(time.Minute)

	typing.Start(convID, typist.UserID)
	typing.Stop(convID, typist.UserID)
	typing.Stop(convID, typist.UserID)
	typing.Stop(convID, uuid.New()) // never typed at all

	stops := 0
	for _, ev := range drain(peer) {
		if ev.Event == EventUserTypingStop {
			stops++
		}
	}
	if stops != 1 {
		t.Fatalf("got %d user_typing_stop events, want 1", stops)
	}
}

func TestPurgeUserStopsEverywhere(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	typing := NewTypingCoordinator(router, time.Minute)

	convA := uuid.New()
	convB := uuid.New()
	typist := testClient(uuid.New())
	peer := testClient(uuid.New())
	hub.Register(typist, []uuid.UUID{convA, convB})
	hub.Register(peer, []uuid.UUID{convA, convB})

	typing.Start(convA, typist.UserID)
	typing.Start(convB, typist.UserID)
	drain(peer)

	typing.PurgeUser(typist.UserID)

	stops := 0
	for _, ev := range drain(peer) {
		if ev.Event == EventUserTypingStop {
			stops++
		}
	}
	if stops != 2 {
		t.Fatalf("got %d user_typing_stop events, want 2", stops)
	}
	if len(typing.typing) != 0 {
		t.Fatal("all typing state should be purged")
	}
}

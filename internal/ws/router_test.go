package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEmitToConversationReachesRoomOnly(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	convID := uuid.New()

	member := testClient(uuid.New())
	outsider := testClient(uuid.New())
	hub.Register(member, []uuid.UUID{convID})
	hub.Register(outsider, nil)

	router.EmitToConversation(convID, "message_delivered", map[string]string{"x": "y"})

	if got := drain(member); len(got) != 1 || got[0].Event != "message_delivered" {
		t.Fatalf("member events = %+v, want one message_delivered", got)
	}
	if got := drain(outsider); len(got) != 0 {
		t.Fatalf("outsider should receive nothing, got %+v", got)
	}
}

func TestEmitToConversationExceptSkipsEveryConnectionOfUser(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	convID := uuid.New()
	typist := uuid.New()

	typistA := testClient(typist)
	typistB := testClient(typist)
	peer := testClient(uuid.New())
	hub.Register(typistA, []uuid.UUID{convID})
	hub.Register(typistB, []uuid.UUID{convID})
	hub.Register(peer, []uuid.UUID{convID})

	router.EmitToConversationExcept(convID, typist, EventUserTypingStart, nil)

	if got := drain(typistA); len(got) != 0 {
		t.Fatalf("excluded user's first connection got %+v", got)
	}
	if got := drain(typistB); len(got) != 0 {
		t.Fatalf("excluded user's second connection got %+v", got)
	}
	if got := drain(peer); len(got) != 1 {
		t.Fatalf("peer events = %d, want 1", len(got))
	}
}

func TestEmitToUserReachesEveryConnection(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	userID := uuid.New()

	c1 := testClient(userID)
	c2 := testClient(userID)
	hub.Register(c1, nil)
	hub.Register(c2, nil)

	router.EmitToUser(userID, EventNotificationReceived, nil)

	if got := drain(c1); len(got) != 1 {
		t.Fatalf("first connection events = %d, want 1", len(got))
	}
	if got := drain(c2); len(got) != 1 {
		t.Fatalf("second connection events = %d, want 1", len(got))
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())

	a := testClient(uuid.New())
	b := testClient(uuid.New())
	hub.Register(a, nil)
	hub.Register(b, nil)

	router.Broadcast(EventSystemAnnouncement, map[string]string{"message": "maintenance at noon"})

	for _, c := range []*Client{a, b} {
		got := drain(c)
		if len(got) != 1 || got[0].Event != EventSystemAnnouncement {
			t.Fatalf("events = %+v, want one system_announcement", got)
		}
	}
}

func TestSlowClientIsDroppedNotBlocked(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	convID := uuid.New()

	slow := testClient(uuid.New())
	hub.Register(slow, []uuid.UUID{convID})

	// Fill the send buffer; the next emit must drop instead of blocking
	for i := 0; i < sendBufferSize; i++ {
		if !slow.Send(Event{Event: "filler"}) {
			t.Fatalf("buffer filled early at %d", i)
		}
	}

	done := make(chan struct{})
	go func() {
		router.EmitToConversation(convID, "message_delivered", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a slow client")
	}
}

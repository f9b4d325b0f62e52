package ws

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"educrm/internal/chat"
	"educrm/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// gatewayFixture wires a gateway with live registry components and no
// persistence. The dispatch paths under test (framing, validation, rate
// limiting, role gating) all fail before any service call is made.
func gatewayFixture() (*Gateway, *Hub) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	typing := NewTypingCoordinator(router, DefaultTypingTTL)
	return NewGateway(hub, router, typing, nil, nil, nil, nil, zerolog.Nop()), hub
}

func connectedClient(g *Gateway, hub *Hub, role string) *Client {
	c := newClient(nil, uuid.New(), role, nil, g)
	hub.Register(c, nil)
	return c
}

func lastError(t *testing.T, c *Client) ErrorDetail {
	t.Helper()
	events := drain(c)
	if len(events) == 0 {
		t.Fatal("expected an error envelope, got nothing")
	}
	last := events[len(events)-1]
	if last.Event != EventError {
		t.Fatalf("expected error event, got %s", last.Event)
	}
	payload, ok := last.Data.(ErrorPayload)
	if !ok {
		t.Fatalf("unexpected error payload type %T", last.Data)
	}
	if payload.Success {
		t.Fatal("error envelope must carry success=false")
	}
	return payload.Error
}

func TestDispatchMalformedFrame(t *testing.T) {
	g, hub := gatewayFixture()
	c := connectedClient(g, hub, models.RoleConsultant)

	g.dispatch(c, []byte("{not json"))
	if detail := lastError(t, c); detail.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", detail.Code)
	}

	g.dispatch(c, []byte(`{"data":{}}`)) // no event name
	if detail := lastError(t, c); detail.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", detail.Code)
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	g, hub := gatewayFixture()
	c := connectedClient(g, hub, models.RoleConsultant)

	g.dispatch(c, []byte(`{"event":"self_destruct","data":{}}`))

	detail := lastError(t, c)
	if detail.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", detail.Code)
	}
}

func TestDispatchValidatesPayloadSchema(t *testing.T) {
	g, hub := gatewayFixture()
	c := connectedClient(g, hub, models.RoleConsultant)

	tests := []struct {
		name  string
		frame string
	}{
		{"edit_message without content", `{"event":"edit_message","data":{"message_id":"` + uuid.NewString() + `"}}`},
		{"typing_start without conversation", `{"event":"typing_start","data":{}}`},
		{"send_message without payload", `{"event":"send_message"}`},
		{"update_presence with invalid status", `{"event":"update_presence","data":{"status":"sleeping"}}`},
		{"mark_message_read without any target", `{"event":"mark_message_read","data":{}}`},
		{"broadcast by admin without message", `{"event":"broadcast_announcement","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := c
			if tt.name == "broadcast by admin without message" {
				client = connectedClient(g, hub, models.RoleSuperAdmin)
			}
			g.dispatch(client, []byte(tt.frame))
			if detail := lastError(t, client); detail.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", detail.Code)
			}
		})
	}
}

func TestDispatchRateLimit(t *testing.T) {
	g, hub := gatewayFixture()
	c := connectedClient(g, hub, models.RoleConsultant)
	c.limiter = rate.NewLimiter(0, 0) // exhausted bucket

	g.dispatch(c, []byte(`{"event":"typing_start","data":{"conversation_id":"`+uuid.NewString()+`"}}`))

	detail := lastError(t, c)
	if detail.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d, want 429", detail.Code)
	}
}

func TestAdminEventsAreRoleGated(t *testing.T) {
	g, hub := gatewayFixture()

	frames := map[string]string{
		"monitor_conversation":   `{"event":"monitor_conversation","data":{"conversation_id":"` + uuid.NewString() + `"}}`,
		"broadcast_announcement": `{"event":"broadcast_announcement","data":{"message":"hi"}}`,
	}

	for _, role := range []string{models.RoleConsultant, models.RoleReceptionist, models.RoleLead} {
		for name, frame := range frames {
			c := connectedClient(g, hub, role)
			g.dispatch(c, []byte(frame))
			if detail := lastError(t, c); detail.Code != http.StatusForbidden {
				t.Fatalf("%s as %s: code = %d, want 403", name, role, detail.Code)
			}
		}
	}
}

func TestBroadcastAnnouncementReachesAllConnections(t *testing.T) {
	g, hub := gatewayFixture()
	admin := connectedClient(g, hub, models.RoleSuperAdmin)
	listener := connectedClient(g, hub, models.RoleConsultant)

	g.dispatch(admin, []byte(`{"event":"broadcast_announcement","data":{"message":"office closed friday"}}`))

	found := false
	for _, ev := range drain(listener) {
		if ev.Event == EventSystemAnnouncement {
			found = true
		}
	}
	if !found {
		t.Fatal("listener should receive the system_announcement")
	}
}

// stubParticipants is a fixed membership table backing the connect and
// disconnect paths, which only need conversation and peer lookups.
type stubParticipants struct {
	members map[uuid.UUID][]uuid.UUID // conversation id -> user ids
}

func (s stubParticipants) Get(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	return nil, errors.New("not found")
}

func (s stubParticipants) GetActive(conversationID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	return nil, errors.New("not found")
}

func (s stubParticipants) ListActive(conversationID uuid.UUID) ([]models.ConversationParticipant, error) {
	return nil, nil
}

func (s stubParticipants) ActiveUserIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.members[conversationID], nil
}

func (s stubParticipants) ActiveConversationIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for convID, users := range s.members {
		for _, id := range users {
			if id == userID {
				out = append(out, convID)
			}
		}
	}
	return out, nil
}

func (s stubParticipants) ActivePeerIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, users := range s.members {
		mine := false
		for _, id := range users {
			if id == userID {
				mine = true
			}
		}
		if !mine {
			continue
		}
		for _, id := range users {
			if id == userID {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

func (s stubParticipants) Update(*models.ConversationParticipant) error { return nil }

func (s stubParticipants) AddGraph(uuid.UUID, []models.ConversationParticipant, []models.ConversationParticipant, *models.Message) error {
	return nil
}

func (s stubParticipants) SoftRemove(uuid.UUID, uuid.UUID, *models.Message) error { return nil }

func (s stubParticipants) MarkRead(uuid.UUID, uuid.UUID, time.Time) error { return nil }

func (s stubParticipants) TotalUnread(uuid.UUID) (int64, error) { return 0, nil }

func TestPresenceTransitionsBroadcastOncePerEdge(t *testing.T) {
	hub := NewHub()
	router := NewRouter(hub, zerolog.Nop())
	typing := NewTypingCoordinator(router, DefaultTypingTTL)

	userA := uuid.New()
	userB := uuid.New()
	convID := uuid.New()
	chatSvc := chat.NewService(nil, stubParticipants{members: map[uuid.UUID][]uuid.UUID{
		convID: {userA, userB},
	}}, nil, nil, router, hub, nil, zerolog.Nop())
	g := NewGateway(hub, router, typing, chatSvc, nil, nil, nil, zerolog.Nop())

	statusEvents := func(events []Event, status string) int {
		n := 0
		for _, ev := range events {
			if ev.Event != EventUserStatusChanged {
				continue
			}
			data, ok := ev.Data.(map[string]interface{})
			if !ok {
				t.Fatalf("unexpected status payload type %T", ev.Data)
			}
			if data["status"] == status {
				n++
			}
		}
		return n
	}

	peer := newClient(nil, userB, models.RoleConsultant, nil, g)
	g.handleConnect(peer)
	drain(peer)

	// First connection: exactly one online broadcast to the peer
	first := newClient(nil, userA, models.RoleConsultant, nil, g)
	g.handleConnect(first)
	if got := statusEvents(drain(peer), StatusOnline); got != 1 {
		t.Fatalf("online broadcasts after first connection = %d, want 1", got)
	}
	if got := statusEvents(drain(first), StatusOnline); got != 0 {
		t.Fatalf("connecting user saw %d of their own online broadcasts", got)
	}

	// Second connection for the same user: none
	second := newClient(nil, userA, models.RoleConsultant, nil, g)
	g.handleConnect(second)
	if got := statusEvents(drain(peer), StatusOnline); got != 0 {
		t.Fatalf("online broadcasts after second connection = %d, want 0", got)
	}

	// Dropping one of two connections: none
	g.handleDisconnect(second)
	if got := statusEvents(drain(peer), StatusOffline); got != 0 {
		t.Fatalf("offline broadcasts while still connected = %d, want 0", got)
	}

	// Last connection gone: exactly one offline broadcast
	g.handleDisconnect(first)
	if got := statusEvents(drain(peer), StatusOffline); got != 1 {
		t.Fatalf("offline broadcasts after last disconnect = %d, want 1", got)
	}
}

func TestConnectionCapEvictsOldest(t *testing.T) {
	g, hub := gatewayFixture()
	userID := uuid.New()

	var oldest *Client
	for i := 0; i < maxConnectionsPerUser; i++ {
		c := newClient(nil, userID, models.RoleConsultant, nil, g)
		hub.Register(c, nil)
		if oldest == nil {
			oldest = c
		}
	}

	g.evictOldestConnection(userID)

	ev, ok := <-oldest.send
	if !ok || ev.Event != EventForceDisconnect {
		t.Fatalf("first queued event = %+v (open=%v), want force_disconnect", ev, ok)
	}
	if _, ok := <-oldest.send; ok {
		t.Fatal("send channel should be closed after eviction")
	}
	if oldest.Send(Event{Event: "late"}) {
		t.Fatal("a closed client must drop further sends")
	}
}

func TestErrorEnvelopeGoesToSenderOnly(t *testing.T) {
	g, hub := gatewayFixture()
	sender := connectedClient(g, hub, models.RoleConsultant)
	bystander := connectedClient(g, hub, models.RoleConsultant)

	g.dispatch(sender, []byte(`{"event":"nope"}`))

	if got := drain(bystander); len(got) != 0 {
		t.Fatalf("bystander should see nothing, got %+v", got)
	}
	if detail := lastError(t, sender); detail.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", detail.Code)
	}
}

package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Router resolves event targets to live connections through the presence
// registry and dispatches. Pure fan-out: no business logic, no delivery
// guarantee beyond "the connection was live at dispatch time". A slow
// client's event is dropped rather than blocking the dispatching goroutine.
type Router struct {
	hub *Hub
	log zerolog.Logger
}

// NewRouter creates a new room router over a presence registry
func NewRouter(hub *Hub, log zerolog.Logger) *Router {
	return &Router{hub: hub, log: log}
}

// EmitToConversation emits an event to every live connection in a
// conversation's room
func (r *Router) EmitToConversation(conversationID uuid.UUID, event string, data interface{}) {
	frame := Event{Event: event, Data: data, Timestamp: time.Now()}
	for _, c := range r.hub.ConnectionsForConversation(conversationID) {
		r.deliver(c, frame)
	}
}

// EmitToConversationExcept emits to a conversation room minus every live
// connection of the excluded user
func (r *Router) EmitToConversationExcept(conversationID, exceptUserID uuid.UUID, event string, data interface{}) {
	frame := Event{Event: event, Data: data, Timestamp: time.Now()}
	for _, c := range r.hub.ConnectionsForConversation(conversationID) {
		if c.UserID == exceptUserID {
			continue
		}
		r.deliver(c, frame)
	}
}

// EmitToUser emits an event to every live connection of a single user
func (r *Router) EmitToUser(userID uuid.UUID, event string, data interface{}) {
	frame := Event{Event: event, Data: data, Timestamp: time.Now()}
	for _, c := range r.hub.ConnectionsForUser(userID) {
		r.deliver(c, frame)
	}
}

// EmitToUsers emits an event to every live connection of a set of users
func (r *Router) EmitToUsers(userIDs []uuid.UUID, event string, data interface{}) {
	frame := Event{Event: event, Data: data, Timestamp: time.Now()}
	for _, userID := range userIDs {
		for _, c := range r.hub.ConnectionsForUser(userID) {
			r.deliver(c, frame)
		}
	}
}

// Broadcast emits an event to every live connection
func (r *Router) Broadcast(event string, data interface{}) {
	frame := Event{Event: event, Data: data, Timestamp: time.Now()}
	for _, c := range r.hub.AllConnections() {
		r.deliver(c, frame)
	}
}

func (r *Router) deliver(c *Client, frame Event) {
	if !c.Send(frame) {
		r.log.Warn().
			Str("connection_id", c.ID.String()).
			Str("user_id", c.UserID.String()).
			Str("event", frame.Event).
			Msg("Dropped event for slow client")
	}
}

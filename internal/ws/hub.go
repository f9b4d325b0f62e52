package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Hub is the presence registry: the bidirectional connection↔user index and
// the per-conversation rooms of live connections. It is the single source of
// truth for "who is online" and "who is in conversation X right now"; no
// other component keeps a shadow copy, and only the hub and the typing
// coordinator mutate the underlying maps.
//
// All state is process-local and lost on restart by design.
type Hub struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID]*Client                // connection id -> client
	userConns map[uuid.UUID]map[uuid.UUID]*Client  // user id -> connection id -> client
	rooms     map[uuid.UUID]map[uuid.UUID]*Client  // conversation id -> connection id -> client
	connRooms map[uuid.UUID]map[uuid.UUID]struct{} // connection id -> conversation ids
}

// NewHub creates a new presence registry
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[uuid.UUID]*Client),
		userConns: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:     make(map[uuid.UUID]map[uuid.UUID]*Client),
		connRooms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Register adds a live connection and joins it to the rooms of the given
// conversations. Returns true when this is the user's first live connection
// (the offline→online transition).
func (h *Hub) Register(c *Client, conversationIDs []uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	conns, ok := h.userConns[c.UserID]
	if !ok {
		conns = make(map[uuid.UUID]*Client)
		h.userConns[c.UserID] = conns
	}
	first := len(conns) == 0
	conns[c.ID] = c

	for _, conversationID := range conversationIDs {
		h.joinLocked(c, conversationID)
	}

	return first
}

// Unregister removes a connection from the registry and every room it was
// in. Returns true when the user has no live connections left (the
// online→offline transition).
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	delete(h.clients, c.ID)

	for conversationID := range h.connRooms[c.ID] {
		h.leaveLocked(c, conversationID)
	}
	delete(h.connRooms, c.ID)

	conns := h.userConns[c.UserID]
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.userConns, c.UserID)
		return true
	}
	return false
}

// JoinRoom joins a single connection to a conversation room
func (h *Hub) JoinRoom(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, conversationID)
}

// LeaveRoom removes a single connection from a conversation room
func (h *Hub) LeaveRoom(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, conversationID)
}

// JoinUser joins every live connection of a user to a conversation room.
// Called when a user becomes a participant of a conversation.
func (h *Hub) JoinUser(conversationID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.userConns[userID] {
		h.joinLocked(c, conversationID)
	}
}

// LeaveUser removes every live connection of a user from a conversation
// room. Called when a participant is removed.
func (h *Hub) LeaveUser(conversationID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.userConns[userID] {
		h.leaveLocked(c, conversationID)
	}
}

// IsOnline reports whether the user has at least one live connection
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}

// LiveConnectionCount returns the number of live connections for a user
func (h *Hub) LiveConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

// ConnectionsForUser snapshots the live connections of a user
func (h *Hub) ConnectionsForUser(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.userConns[userID]))
	for _, c := range h.userConns[userID] {
		out = append(out, c)
	}
	return out
}

// ConnectionsForConversation snapshots the live connections in a room
func (h *Hub) ConnectionsForConversation(conversationID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.rooms[conversationID]))
	for _, c := range h.rooms[conversationID] {
		out = append(out, c)
	}
	return out
}

// AllConnections snapshots every live connection
func (h *Hub) AllConnections() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// OnlineAmong filters the given user ids down to those currently online
func (h *Hub) OnlineAmong(userIDs []uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if len(h.userConns[id]) > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (h *Hub) joinLocked(c *Client, conversationID uuid.UUID) {
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[uuid.UUID]*Client)
		h.rooms[conversationID] = room
	}
	room[c.ID] = c

	joined, ok := h.connRooms[c.ID]
	if !ok {
		joined = make(map[uuid.UUID]struct{})
		h.connRooms[c.ID] = joined
	}
	joined[conversationID] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, conversationID uuid.UUID) {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if joined, ok := h.connRooms[c.ID]; ok {
		delete(joined, conversationID)
	}
}

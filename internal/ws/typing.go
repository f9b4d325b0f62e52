package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTypingTTL is how long a typing indicator survives without a
// fresh typing_start before it auto-expires
const DefaultTypingTTL = 3 * time.Second

// TypingCoordinator tracks who is typing in which conversation. The state
// is transient: every start schedules an auto-expiry, disconnects purge the
// user everywhere, and an empty conversation entry is deleted outright. A
// crash loses typing state, which is acceptable for a UX nicety.
type TypingCoordinator struct {
	mu     sync.Mutex
	typing map[uuid.UUID]map[uuid.UUID]*time.Timer // conversation id -> user id -> expiry timer
	router *Router
	ttl    time.Duration
}

// NewTypingCoordinator creates a typing coordinator with the given expiry
func NewTypingCoordinator(router *Router, ttl time.Duration) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		typing: make(map[uuid.UUID]map[uuid.UUID]*time.Timer),
		router: router,
		ttl:    ttl,
	}
}

// Start marks a user as typing and notifies the rest of the conversation.
// A fresh start supersedes the pending expiry of an earlier one.
func (t *TypingCoordinator) Start(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	users, ok := t.typing[conversationID]
	if !ok {
		users = make(map[uuid.UUID]*time.Timer)
		t.typing[conversationID] = users
	}
	timer, alreadyTyping := users[userID]
	if alreadyTyping {
		timer.Stop()
	}
	users[userID] = time.AfterFunc(t.ttl, func() {
		t.Stop(conversationID, userID)
	})
	t.mu.Unlock()

	if !alreadyTyping {
		t.router.EmitToConversationExcept(conversationID, userID, EventUserTypingStart, map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         userID,
		})
	}
}

// Stop clears a user's typing state. Stopping an already-stopped indicator
// is a no-op; removing the last typist deletes the conversation entry.
func (t *TypingCoordinator) Stop(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	users, ok := t.typing[conversationID]
	if !ok {
		t.mu.Unlock()
		return
	}
	timer, ok := users[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.typing, conversationID)
	}
	t.mu.Unlock()

	t.router.EmitToConversationExcept(conversationID, userID, EventUserTypingStop, map[string]interface{}{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
}

// PurgeUser clears the user's typing state in every conversation, emitting
// the corresponding stop events. Called when the user's last connection
// drops.
func (t *TypingCoordinator) PurgeUser(userID uuid.UUID) {
	t.mu.Lock()
	var affected []uuid.UUID
	for conversationID, users := range t.typing {
		if _, ok := users[userID]; ok {
			affected = append(affected, conversationID)
		}
	}
	t.mu.Unlock()

	for _, conversationID := range affected {
		t.Stop(conversationID, userID)
	}
}

// TypingUsers lists who is currently typing in a conversation
func (t *TypingCoordinator) TypingUsers(conversationID uuid.UUID) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.typing[conversationID]
	out := make([]uuid.UUID, 0, len(users))
	for userID := range users {
		out = append(out, userID)
	}
	return out
}

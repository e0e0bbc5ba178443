// Package state implements the two persisted state containers (chat and
// auth). Each container guards one snapshot, applies pure transition
// functions to it, and writes the full snapshot through to the blob store
// after every mutation. Invariant-bearing logic lives in the transitions,
// which are unit-testable without any storage dependency; the container is
// the side-effecting wrapper around them.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/store"
)

// Persister is the narrow slice of the blob store a container needs.
type Persister interface {
	Save(key string, v any) error
}

// TimestampLayout renders message timestamps as clock-time strings, matching
// the locale-time format the thread view displays.
const TimestampLayout = "3:04:05 PM"

// NewTextMessage builds an immutable text message stamped with the current
// clock time.
func NewTextMessage(sender, text string, now time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: now.Format(TimestampLayout),
		Type:      domain.TypeText,
	}
}

// NewImageMessage builds an immutable image message. Image messages are
// always user-sent.
func NewImageMessage(image string, now time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderUser,
		Image:     image,
		Timestamp: now.Format(TimestampLayout),
		Type:      domain.TypeImage,
	}
}

//
// Pure transitions
//

// createChatroom appends a new room and its empty message list. Uniqueness of
// id is the caller's contract; titles are free-form.
func createChatroom(s domain.ChatState, id, title string, now time.Time) domain.ChatState {
	s.Chatrooms = append(s.Chatrooms, domain.Chatroom{
		ID:        id,
		Title:     title,
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
	s.Messages[id] = []domain.Message{}
	return s
}

// deleteChatroom removes the room and its message list, clearing selection
// when the deleted room was selected. Deleting an unknown id is a no-op.
func deleteChatroom(s domain.ChatState, id string) domain.ChatState {
	rooms := s.Chatrooms[:0]
	for _, r := range s.Chatrooms {
		if r.ID != id {
			rooms = append(rooms, r)
		}
	}
	s.Chatrooms = rooms
	delete(s.Messages, id)
	if s.SelectedChatroomID != nil && *s.SelectedChatroomID == id {
		s.SelectedChatroomID = nil
	}
	return s
}

// renameChatroom replaces the title of a listed room; unknown ids no-op.
func renameChatroom(s domain.ChatState, id, title string) domain.ChatState {
	if room := s.Room(id); room != nil {
		room.Title = title
	}
	return s
}

// selectChatroom sets the selection unconditionally; callers are trusted.
func selectChatroom(s domain.ChatState, id string) domain.ChatState {
	s.SelectedChatroomID = &id
	return s
}

// appendMessage appends one message to the room's list, lazily creating the
// list for a room whose id was never initialized, and refreshes the room's
// summary fields when the room is listed.
func appendMessage(s domain.ChatState, roomID string, msg domain.Message) domain.ChatState {
	if s.Messages[roomID] == nil {
		s.Messages[roomID] = []domain.Message{}
	}
	s.Messages[roomID] = append(s.Messages[roomID], msg)

	if room := s.Room(roomID); room != nil {
		summary := msg.Text
		if msg.Type == domain.TypeImage {
			summary = domain.ImageSummary
		}
		ts := msg.Timestamp
		room.LastMessage = &summary
		room.LastMessageTime = &ts
	}
	return s
}

// loadOldMessages prepends a batch of older messages, preserving the
// existing list's relative order after the batch. The only non-appending
// mutation.
func loadOldMessages(s domain.ChatState, roomID string, old []domain.Message) domain.ChatState {
	merged := make([]domain.Message, 0, len(old)+len(s.Messages[roomID]))
	merged = append(merged, old...)
	merged = append(merged, s.Messages[roomID]...)
	s.Messages[roomID] = merged
	return s
}

//
// Container
//

// Chat owns the chat snapshot and the per-room reply throttle. All methods
// are safe for concurrent use; mutations run to completion, snapshot
// included, before another intent is processed.
type Chat struct {
	mu      sync.Mutex
	state   domain.ChatState
	pending map[string]bool // roomID -> one outstanding simulated reply
	store   Persister
	log     zerolog.Logger
}

// NewChat wraps an initial snapshot (the caller substitutes the empty
// default on load failure) with write-through persistence. store may be nil
// for storage-free tests.
func NewChat(initial domain.ChatState, store Persister, log zerolog.Logger) *Chat {
	if initial.Messages == nil {
		initial = domain.NewChatState()
	}
	return &Chat{
		state:   initial,
		pending: make(map[string]bool),
		store:   store,
		log:     log,
	}
}

// persist writes the current snapshot through to the store. Failures are
// soft: logged and swallowed, state stays applied in memory. Must be called
// with the lock held.
func (c *Chat) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(store.ChatStateKey, c.state); err != nil {
		c.log.Error().Err(err).Msg("persist chat state")
	}
}

// CreateChatroom appends a new room with an empty thread and persists.
func (c *Chat) CreateChatroom(id, title string) domain.Chatroom {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = createChatroom(c.state, id, title, time.Now())
	c.persist()
	return *c.state.Room(id)
}

// DeleteChatroom removes the room, its thread, its throttle slot, and any
// selection pointing at it. Idempotent.
func (c *Chat) DeleteChatroom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = deleteChatroom(c.state, id)
	delete(c.pending, id)
	c.persist()
}

// RenameChatroom replaces a listed room's title and persists.
func (c *Chat) RenameChatroom(id, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = renameChatroom(c.state, id, title)
	c.persist()
}

// SelectChatroom records the selection and persists.
func (c *Chat) SelectChatroom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = selectChatroom(c.state, id)
	c.persist()
}

// AppendMessage appends one message to a room and persists. The container
// never rejects: missing rooms self-heal with a lazily created list.
func (c *Chat) AppendMessage(roomID string, msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = appendMessage(c.state, roomID, msg)
	c.persist()
}

// LoadOldMessages prepends a batch of older messages and persists.
func (c *Chat) LoadOldMessages(roomID string, old []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = loadOldMessages(c.state, roomID, old)
	c.persist()
}

// PaginateMessages re-persists the snapshot without changing it. Kept for
// parity with the client's dispatch surface; actual backfill batches enter
// through LoadOldMessages.
func (c *Chat) PaginateMessages(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist()
}

// TryBeginReply engages the per-room throttle. It returns false when a
// simulated reply is already outstanding for the room; the caller drops the
// send at its own boundary. The throttle is runtime coordination state and
// is never serialized.
func (c *Chat) TryBeginReply(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[roomID] {
		return false
	}
	c.pending[roomID] = true
	return true
}

// EndReply releases the throttle for the room.
func (c *Chat) EndReply(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, roomID)
}

// ReplyPending reports whether a simulated reply is outstanding for roomID.
func (c *Chat) ReplyPending(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[roomID]
}

// Snapshot returns a deep copy of the current chat state.
func (c *Chat) Snapshot() domain.ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// RoomExists reports whether roomID is listed.
func (c *Chat) RoomExists(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Room(roomID) != nil
}

// RoomMessages returns a copy of the room's thread.
func (c *Chat) RoomMessages(roomID string) []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.state.Messages[roomID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Package domain defines the state model for chatrooms, messages, and the
// auth session. These types are serialized as whole-state JSON blobs by the
// store layer and form the core data model of the chatroom backend.
package domain

// Message sender values.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message type values.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// ImageSummary is the lastMessage placeholder used for image messages.
const ImageSummary = "Image sent"

// Chatroom is a named, persisted conversation thread container.
//
// Fields:
//   - ID: opaque string identifier (UUID, caller-supplied uniqueness).
//   - Title: human-readable room title.
//   - CreatedAt: RFC3339 creation timestamp.
//   - LastMessage: summary of the most recent message (null until the first
//     message arrives; "Image sent" for image messages).
//   - LastMessageTime: clock-time string of the most recent message.
type Chatroom struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	CreatedAt       string  `json:"createdAt"`
	LastMessage     *string `json:"lastMessage"`
	LastMessageTime *string `json:"lastMessageTime,omitempty"`
}

// Message is one immutable unit of conversation content. Exactly one of
// Text/Image is meaningful, selected by Type.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// ChatState is the full persisted chat blob: the room list, the current
// selection, and the per-room message index.
//
// Invariant: every id in Chatrooms has an entry (possibly empty) in Messages
// and vice versa; SelectedChatroomID is nil or references a listed room.
type ChatState struct {
	Chatrooms          []Chatroom           `json:"chatrooms"`
	SelectedChatroomID *string              `json:"selectedChatroomId"`
	Messages           map[string][]Message `json:"messages"`
}

// NewChatState returns the empty default chat state.
func NewChatState() ChatState {
	return ChatState{
		Chatrooms:          []Chatroom{},
		SelectedChatroomID: nil,
		Messages:           map[string][]Message{},
	}
}

// Clone returns a deep copy. Transitions operate on copies so a failed
// mutation never leaves a half-applied state visible to readers.
func (s ChatState) Clone() ChatState {
	out := ChatState{
		Chatrooms: make([]Chatroom, len(s.Chatrooms)),
		Messages:  make(map[string][]Message, len(s.Messages)),
	}
	copy(out.Chatrooms, s.Chatrooms)
	if s.SelectedChatroomID != nil {
		id := *s.SelectedChatroomID
		out.SelectedChatroomID = &id
	}
	for id, msgs := range s.Messages {
		cp := make([]Message, len(msgs))
		copy(cp, msgs)
		out.Messages[id] = cp
	}
	return out
}

// Room returns a pointer to the listed chatroom with the given id, or nil.
// The pointer aliases the receiver's backing array.
func (s *ChatState) Room(id string) *Chatroom {
	for i := range s.Chatrooms {
		if s.Chatrooms[i].ID == id {
			return &s.Chatrooms[i]
		}
	}
	return nil
}

// DefaultCountryCode is the dialing code an auth session starts with and
// returns to on logout.
const DefaultCountryCode = "+91"

// AuthSession is the single process-wide login state blob.
type AuthSession struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
	IsOTPSent   bool   `json:"isOTPSent"`
	IsVerified  bool   `json:"isVerified"`
}

// NewAuthSession returns the logged-out default session.
func NewAuthSession() AuthSession {
	return AuthSession{CountryCode: DefaultCountryCode}
}

// Country is one entry of the dialing-code directory.
type Country struct {
	Name     string `json:"name"`
	DialCode string `json:"dial_code"`
}

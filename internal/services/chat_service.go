// Package services – ChatService
//
// This file implements the ChatService, which fronts the chat state
// container for every UI intent: room lifecycle, message sends, and the
// simulated assistant reply. It validates and normalizes input at the
// boundary (the container below never rejects), engages the per-room reply
// throttle, and schedules the responder as a cancellable task.
//
// Service-level errors (e.g., ErrRoomNotFound, ErrReplyPending) are returned
// for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/responder"
	"github.com/avendal/go-chatroom-backend/internal/state"
)

const (
	// default titles considered placeholders and eligible for auto-generation
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// ReplyTask is the handle for one scheduled simulated reply. Cancelling it
// releases the room's throttle without appending a message.
type ReplyTask struct {
	RoomID string

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel aborts the pending reply. Safe to call more than once.
func (t *ReplyTask) Cancel() { t.cancel() }

// Done is closed once the task finished, whether it appended a reply or was
// cancelled.
func (t *ReplyTask) Done() <-chan struct{} { return t.done }

// ChatService coordinates the chat state container, the responder strategy,
// and the session-local history simulation.
type ChatService struct {
	State     *state.Chat
	Responder responder.Responder
	Log       zerolog.Logger

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale selects the casing rules for auto-generated titles.
	TitleLocale language.Tag
	// MaxMessageRunes caps user text messages; 0 disables the cap.
	MaxMessageRunes int

	// History simulation knobs; zero values take the documented defaults
	// (800 ms, 5 messages, 3 pages).
	HistoryDelay    time.Duration
	HistoryPageSize int
	HistoryMaxPages int

	// sleep is a seam so tests can skip the simulated latency.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	pages map[string]int       // roomID -> next history page, session-local
	tasks map[string]*ReplyTask // roomID -> pending reply
	wg    sync.WaitGroup
}

// NewChatService constructs a ChatService with sane defaults.
func NewChatService(st *state.Chat, r responder.Responder, log zerolog.Logger) *ChatService {
	return &ChatService{
		State:           st,
		Responder:       r,
		Log:             log,
		TitleMaxLen:     60,
		TitleLocale:     language.English,
		MaxMessageRunes: 2000,
		HistoryDelay:    800 * time.Millisecond,
		HistoryPageSize: 5,
		HistoryMaxPages: 3,
		sleep:           sleepCtx,
		pages:           make(map[string]int),
		tasks:           make(map[string]*ReplyTask),
	}
}

// CreateRoom normalizes the title, applies the placeholder default, and
// appends the room with an empty thread.
func (s *ChatService) CreateRoom(ctx context.Context, title string) domain.Chatroom {
	tr := otel.Tracer("services/ChatService")
	_, span := tr.Start(ctx, "CreateRoom")
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}
	room := s.State.CreateChatroom(uuid.NewString(), s.clip(title))
	span.SetAttributes(attribute.String("room.id", room.ID))
	s.Log.Info().Str("room_id", room.ID).Str("title", room.Title).Msg("chatroom created")
	return room
}

// DeleteRoom removes the room, cancelling any pending reply for it first.
// Deleting an unknown id is a no-op.
func (s *ChatService) DeleteRoom(ctx context.Context, roomID string) {
	tr := otel.Tracer("services/ChatService")
	_, span := tr.Start(ctx, "DeleteRoom",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	s.mu.Lock()
	if t, ok := s.tasks[roomID]; ok {
		t.Cancel()
	}
	delete(s.pages, roomID)
	s.mu.Unlock()

	s.State.DeleteChatroom(roomID)
	s.Log.Info().Str("room_id", roomID).Msg("chatroom deleted")
}

// SelectRoom records the selection. The listed-room check lives here at the
// boundary; the container sets selection unconditionally.
func (s *ChatService) SelectRoom(ctx context.Context, roomID string) error {
	if !s.State.RoomExists(roomID) {
		return ErrRoomNotFound
	}
	s.State.SelectChatroom(roomID)
	return nil
}

// Rooms returns the current chat snapshot.
func (s *ChatService) Rooms(ctx context.Context) domain.ChatState {
	return s.State.Snapshot()
}

// Messages returns the room's thread, or ErrRoomNotFound for unknown rooms.
func (s *ChatService) Messages(ctx context.Context, roomID string) ([]domain.Message, error) {
	if !s.State.RoomExists(roomID) {
		return nil, ErrRoomNotFound
	}
	return s.State.RoomMessages(roomID), nil
}

// SendText validates and appends a user text message, engages the per-room
// throttle, and schedules exactly one simulated reply. While a reply is
// outstanding the send is dropped with ErrReplyPending; nothing is queued.
func (s *ChatService) SendText(ctx context.Context, roomID, text string) (domain.Message, *ReplyTask, error) {
	tr := otel.Tracer("services/ChatService")
	_, span := tr.Start(ctx, "SendText",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return domain.Message{}, nil, ErrMessageTooLong
	}
	if !s.State.RoomExists(roomID) {
		return domain.Message{}, nil, ErrRoomNotFound
	}
	if !s.State.TryBeginReply(roomID) {
		return domain.Message{}, nil, ErrReplyPending
	}

	msg := state.NewTextMessage(domain.SenderUser, text, time.Now())
	s.State.AppendMessage(roomID, msg)
	s.autoTitle(roomID, text)

	task := s.scheduleReply(roomID)
	return msg, task, nil
}

// SendImage appends a user image message. Image sends do not engage the
// throttle and never trigger a reply.
func (s *ChatService) SendImage(ctx context.Context, roomID, image string) (domain.Message, error) {
	tr := otel.Tracer("services/ChatService")
	_, span := tr.Start(ctx, "SendImage",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if strings.TrimSpace(image) == "" {
		return domain.Message{}, ErrEmptyImage
	}
	if !s.State.RoomExists(roomID) {
		return domain.Message{}, ErrRoomNotFound
	}
	msg := state.NewImageMessage(image, time.Now())
	s.State.AppendMessage(roomID, msg)
	return msg, nil
}

// scheduleReply spawns the responder as a detached, cancellable task. The
// task is deliberately not tied to the request context: the mutation applies
// to global state even when the originating request is long gone. Cancelling
// the task (room deletion, shutdown) releases the throttle without a reply.
func (s *ChatService) scheduleReply(roomID string) *ReplyTask {
	ctx, cancel := context.WithCancel(context.Background())
	task := &ReplyTask{RoomID: roomID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[roomID] = task
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(task.done)
		defer cancel()
		defer func() {
			s.mu.Lock()
			if s.tasks[roomID] == task {
				delete(s.tasks, roomID)
			}
			s.mu.Unlock()
			s.State.EndReply(roomID)
		}()

		reply, err := s.Responder.Reply(ctx, roomID)
		if err != nil {
			s.Log.Debug().Str("room_id", roomID).Err(err).Msg("reply cancelled")
			return
		}
		s.State.AppendMessage(roomID, state.NewTextMessage(domain.SenderAI, reply, time.Now()))
	}()
	return task
}

// Close cancels all pending reply tasks and waits for them to settle.
func (s *ChatService) Close() {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.Cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// autoTitle derives a room title from the first user message when the room
// still carries a placeholder title.
func (s *ChatService) autoTitle(roomID, text string) {
	snap := s.State.Snapshot()
	room := snap.Room(roomID)
	if room == nil || !isPlaceholderTitle(room.Title) {
		return
	}
	gen := s.generateTitle(text)
	if gen == "" {
		return
	}
	s.State.RenameChatroom(roomID, s.clip(gen))
}

// generateTitle derives a concise title from the first words of a message.
func (s *ChatService) generateTitle(text string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(text), -1)
	if len(toks) == 0 {
		return ""
	}
	caser := cases.Title(s.titleLocale())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

func (s *ChatService) titleLocale() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// clip truncates a title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

func isPlaceholderTitle(t string) bool {
	t = strings.TrimSpace(strings.ToLower(t))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// titleWordRE extracts letters with optional trailing digits.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// titleStopWords is a minimal English stop-word set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

// sleepCtx sleeps for d or returns early with ctx.Err().
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

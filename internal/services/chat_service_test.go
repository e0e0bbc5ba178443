package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/state"
)

// ----- Stub responder -----

type stubResponder struct {
	reply string
	calls atomic.Int32

	// block, when non-nil, holds the reply until closed or ctx cancels.
	block chan struct{}
}

func (r *stubResponder) Reply(ctx context.Context, roomID string) (string, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-r.block:
		}
	}
	if r.reply == "" {
		return "stub reply", nil
	}
	return r.reply, nil
}

func testService(r *stubResponder) *ChatService {
	st := state.NewChat(domain.NewChatState(), nil, zerolog.Nop())
	return NewChatService(st, r, zerolog.Nop())
}

func waitDone(t *testing.T, task *ReplyTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("reply task did not settle")
	}
}

// ----- Room lifecycle -----

func TestCreateRoom_DefaultTitle(t *testing.T) {
	s := testService(&stubResponder{})

	room := s.CreateRoom(context.Background(), "   ")
	if room.Title != "New chat" {
		t.Fatalf("title = %q; want placeholder", room.Title)
	}
	if room.ID == "" || room.CreatedAt == "" {
		t.Fatalf("room = %+v", room)
	}
}

func TestCreateRoom_NormalizesAndClipsTitle(t *testing.T) {
	s := testService(&stubResponder{})
	s.TitleMaxLen = 5

	room := s.CreateRoom(context.Background(), "  héllo   wörld  ")
	if room.Title != "héllo" {
		t.Fatalf("title = %q", room.Title)
	}
}

func TestSelectRoom_UnknownID(t *testing.T) {
	s := testService(&stubResponder{})
	if err := s.SelectRoom(context.Background(), "ghost"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v; want ErrRoomNotFound", err)
	}
}

func TestSelectRoom_RecordsSelection(t *testing.T) {
	s := testService(&stubResponder{})
	room := s.CreateRoom(context.Background(), "a")

	if err := s.SelectRoom(context.Background(), room.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := s.Rooms(context.Background())
	if snap.SelectedChatroomID == nil || *snap.SelectedChatroomID != room.ID {
		t.Fatalf("selection = %v", snap.SelectedChatroomID)
	}
}

func TestMessages_UnknownRoom(t *testing.T) {
	s := testService(&stubResponder{})
	if _, err := s.Messages(context.Background(), "ghost"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v; want ErrRoomNotFound", err)
	}
}

// ----- Text sends and the simulated reply -----

func TestSendText_AppendsUserThenReply(t *testing.T) {
	r := &stubResponder{reply: "canned answer"}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	msg, task, err := s.SendText(context.Background(), room.ID, "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Sender != domain.SenderUser || msg.Text != "hello" {
		t.Fatalf("user message = %+v", msg)
	}
	waitDone(t, task)

	msgs, err := s.Messages(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("thread length = %d; want user + reply", len(msgs))
	}
	if msgs[1].Sender != domain.SenderAI || msgs[1].Text != "canned answer" {
		t.Fatalf("reply = %+v", msgs[1])
	}
	if s.State.ReplyPending(room.ID) {
		t.Fatalf("throttle not released after reply")
	}
}

func TestSendText_Validation(t *testing.T) {
	s := testService(&stubResponder{})
	room := s.CreateRoom(context.Background(), "a")

	if _, _, err := s.SendText(context.Background(), room.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank: %v", err)
	}
	s.MaxMessageRunes = 3
	if _, _, err := s.SendText(context.Background(), room.ID, "toolong"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("over cap: %v", err)
	}
	s.MaxMessageRunes = 0
	if _, _, err := s.SendText(context.Background(), "ghost", "hi"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("unknown room: %v", err)
	}
}

func TestSendText_DroppedWhileReplyPending(t *testing.T) {
	r := &stubResponder{block: make(chan struct{})}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	_, task, err := s.SendText(context.Background(), room.ID, "first")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}

	if _, _, err := s.SendText(context.Background(), room.ID, "second"); !errors.Is(err, ErrReplyPending) {
		t.Fatalf("err = %v; want ErrReplyPending", err)
	}

	// Nothing was queued for the dropped send.
	msgs, _ := s.Messages(context.Background(), room.ID)
	if len(msgs) != 1 {
		t.Fatalf("thread length = %d; dropped send leaked", len(msgs))
	}

	close(r.block)
	waitDone(t, task)

	// Throttle released; the next send goes through.
	if _, task2, err := s.SendText(context.Background(), room.ID, "third"); err != nil {
		t.Fatalf("send after release: %v", err)
	} else {
		waitDone(t, task2)
	}
}

func TestSendText_ReplySurvivesRequestContext(t *testing.T) {
	r := &stubResponder{block: make(chan struct{})}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	reqCtx, cancelReq := context.WithCancel(context.Background())
	_, task, err := s.SendText(reqCtx, room.ID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	cancelReq() // the originating request goes away
	close(r.block)
	waitDone(t, task)

	msgs, _ := s.Messages(context.Background(), room.ID)
	if len(msgs) != 2 {
		t.Fatalf("reply did not land after request cancel: %d messages", len(msgs))
	}
}

func TestDeleteRoom_CancelsPendingReply(t *testing.T) {
	r := &stubResponder{block: make(chan struct{})}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	_, task, err := s.SendText(context.Background(), room.ID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	s.DeleteRoom(context.Background(), room.ID)
	waitDone(t, task)

	if s.State.RoomExists(room.ID) {
		t.Fatalf("room still listed")
	}
	if s.State.ReplyPending(room.ID) {
		t.Fatalf("throttle survived deletion")
	}
}

func TestClose_SettlesAllTasks(t *testing.T) {
	r := &stubResponder{block: make(chan struct{})}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	_, task, err := s.SendText(context.Background(), room.ID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	s.Close()
	waitDone(t, task)

	// Cancelled task appended nothing.
	msgs, _ := s.Messages(context.Background(), room.ID)
	if len(msgs) != 1 {
		t.Fatalf("thread length = %d after cancelled reply", len(msgs))
	}
}

// ----- Image sends -----

func TestSendImage_NoReplyNoThrottle(t *testing.T) {
	r := &stubResponder{}
	s := testService(r)
	room := s.CreateRoom(context.Background(), "a")

	msg, err := s.SendImage(context.Background(), room.ID, "data:image/png;base64,abc")
	if err != nil {
		t.Fatalf("send image: %v", err)
	}
	if msg.Type != domain.TypeImage || msg.Sender != domain.SenderUser {
		t.Fatalf("message = %+v", msg)
	}
	if got := r.calls.Load(); got != 0 {
		t.Fatalf("responder called %d times for an image send", got)
	}
	if s.State.ReplyPending(room.ID) {
		t.Fatalf("image send engaged the throttle")
	}

	snap := s.Rooms(context.Background())
	if lm := snap.Room(room.ID).LastMessage; lm == nil || *lm != domain.ImageSummary {
		t.Fatalf("lastMessage = %v; want %q", lm, domain.ImageSummary)
	}
}

func TestSendImage_Validation(t *testing.T) {
	s := testService(&stubResponder{})
	room := s.CreateRoom(context.Background(), "a")

	if _, err := s.SendImage(context.Background(), room.ID, "  "); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("blank image: %v", err)
	}
	if _, err := s.SendImage(context.Background(), "ghost", "data:x"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("unknown room: %v", err)
	}
}

// ----- Auto titles -----

func TestSendText_AutoTitlesPlaceholderRoom(t *testing.T) {
	s := testService(&stubResponder{})
	room := s.CreateRoom(context.Background(), "")

	_, task, err := s.SendText(context.Background(), room.ID, "the weather in lisbon today")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	waitDone(t, task)

	snap := s.Rooms(context.Background())
	got := snap.Room(room.ID).Title
	if got != "Weather Lisbon Today" {
		t.Fatalf("title = %q", got)
	}
}

func TestSendText_KeepsExplicitTitle(t *testing.T) {
	s := testService(&stubResponder{})
	room := s.CreateRoom(context.Background(), "My Room")

	_, task, err := s.SendText(context.Background(), room.ID, "something else entirely")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	waitDone(t, task)

	snap := s.Rooms(context.Background())
	if got := snap.Room(room.ID).Title; got != "My Room" {
		t.Fatalf("title = %q; explicit title replaced", got)
	}
}

func TestGenerateTitle_StopWordsAndCap(t *testing.T) {
	s := testService(&stubResponder{})

	got := s.generateTitle("the a an and or of to in is are for on with by from at as that this it be was were")
	if got != "" {
		t.Fatalf("all stop words produced %q", got)
	}

	got = s.generateTitle("one two three four five six seven eight nine ten")
	if len(strings.Fields(got)) != 8 {
		t.Fatalf("title = %q; want 8 words", got)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"   leading   ":    "leading",
		"multi   spaces":   "multi spaces",
		"tabs\tand\nnl  ":  "tabs and nl",
		" already ok ":     "already ok",
		"\t  \n":           "",
	}
	for in, want := range cases {
		if got := normalizeTitle(in); got != want {
			t.Errorf("normalizeTitle(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestClip_UsesRunesNotBytes(t *testing.T) {
	s := testService(&stubResponder{})
	s.TitleMaxLen = 5

	if got := s.clip("ωωωωωωω"); got != "ωωωωω" {
		t.Fatalf("clip = %q", got)
	}
	if got := s.clip("abc"); got != "abc" {
		t.Fatalf("clip = %q", got)
	}
}

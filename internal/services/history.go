// Package services – history simulation.
//
// "Load older messages" is simulated: there is no backend to page from. Each
// request waits a fixed delay, synthesizes a batch of placeholder messages
// backdated by one day per page, and prepends it to the thread. The page
// cursor and the exhaustion flag are session-local on purpose; a process
// restart resets them, exactly like a browser reload did in the reference
// client.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/state"
)

// LoadOlder prepends one simulated page of older messages to the room and
// reports whether more pages remain for this session. It returns
// ErrHistoryExhausted once the per-room page limit is reached and
// ErrRoomNotFound for unknown rooms. The delay honors ctx.
func (s *ChatService) LoadOlder(ctx context.Context, roomID string) ([]domain.Message, bool, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "LoadOlder",
		trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if !s.State.RoomExists(roomID) {
		return nil, false, ErrRoomNotFound
	}

	maxPages := s.HistoryMaxPages
	if maxPages <= 0 {
		maxPages = 3
	}

	s.mu.Lock()
	page := s.pages[roomID]
	if page == 0 {
		page = 1
	}
	if page > maxPages {
		s.mu.Unlock()
		return nil, false, ErrHistoryExhausted
	}
	s.pages[roomID] = page + 1
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("history.page", page))

	delay := s.HistoryDelay
	if delay <= 0 {
		delay = 800 * time.Millisecond
	}
	if err := s.sleep(ctx, delay); err != nil {
		// Roll the cursor back; the page was never delivered.
		s.mu.Lock()
		s.pages[roomID] = page
		s.mu.Unlock()
		return nil, false, err
	}

	batch := s.synthesizeHistory(page)
	s.State.LoadOldMessages(roomID, batch)
	s.State.PaginateMessages(roomID)

	return batch, page < maxPages, nil
}

// synthesizeHistory builds one placeholder page, backdated page days.
func (s *ChatService) synthesizeHistory(page int) []domain.Message {
	size := s.HistoryPageSize
	if size <= 0 {
		size = 5
	}
	when := time.Now().Add(-time.Duration(page) * 24 * time.Hour)
	out := make([]domain.Message, 0, size)
	for i := 0; i < size; i++ {
		sender := domain.SenderAI
		if rand.Intn(2) == 0 {
			sender = domain.SenderUser
		}
		out = append(out, domain.Message{
			ID:        fmt.Sprintf("old-%d-%d", page, i),
			Sender:    sender,
			Text:      fmt.Sprintf("Old message %d-%d", page, i),
			Timestamp: when.Format(state.TimestampLayout),
			Type:      domain.TypeText,
		})
	}
	return out
}

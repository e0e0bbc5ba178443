// Message HTTP handlers.
//
// Endpoints for per-room threads:
//   - GET  /chatrooms/{id}/messages  (full thread)
//   - POST /chatrooms/{id}/messages  (send text; schedules one simulated reply)
//   - POST /chatrooms/{id}/images    (send image)
//   - POST /chatrooms/{id}/history   (load one older page)
//
// Text sends honor the Idempotency-Key header: a retry of a completed send
// returns the original message instead of appending again and scheduling a
// second reply.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/http/middleware"
	"github.com/avendal/go-chatroom-backend/internal/services"
	"github.com/avendal/go-chatroom-backend/internal/store"
	"github.com/avendal/go-chatroom-backend/internal/utils"
)

// timeNowUTC is a seam so tests can pin the clock for replay lookups.
var timeNowUTC = func() time.Time { return time.Now().UTC() }

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a text message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendImageRequest is the JSON payload for sending an image message. Image is
// an opaque reference, typically a data URL produced by the client.
type SendImageRequest struct {
	Image string `json:"image"`
}

// SendMessageResponse wraps the appended message. Replayed is true when the
// response was served from an idempotency record rather than a fresh send.
type SendMessageResponse struct {
	Message  domain.Message `json:"message"`
	Replayed bool           `json:"replayed,omitempty"`
}

// ListMessagesResponse wraps a room's thread.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// HistoryResponse carries one page of older messages. HasMore is false once
// the simulated archive is exhausted.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

//
// Handlers
//

// ListMessages returns the room's thread in chronological order. An optional
// limit query parameter returns only the newest N messages; older pages are
// fetched through LoadHistory.
func (h *Handlers) ListMessages(c *gin.Context) {
	roomID := c.Param("id")
	msgs, err := h.chatSvc.Messages(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatroom not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit := utils.ClampInt(utils.AtoiDefault(raw, len(msgs)), 0, len(msgs))
		msgs = msgs[len(msgs)-limit:]
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs})
}

// SendMessage appends a user text message and schedules one simulated reply.
// A send is refused with 429 while the room's previous reply is outstanding.
func (h *Handlers) SendMessage(c *gin.Context) {
	roomID := c.Param("id")

	if middleware.IsReplay(c) {
		if msg, found := h.replayMessage(c, roomID); found {
			ok(c, http.StatusOK, SendMessageResponse{Message: msg, Replayed: true})
			return
		}
		// Record existed at validation time but vanished; fall through and
		// process as a fresh send.
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, task, err := h.chatSvc.SendText(c.Request.Context(), roomID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message text must not be empty")
		case errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message text too long")
		case errors.Is(err, services.ErrRoomNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatroom not found")
		case errors.Is(err, services.ErrReplyPending):
			fail(c, http.StatusTooManyRequests, ErrCodeReplyPending,
				"a reply is still being generated for this chatroom")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	h.recordIdempotency(c, roomID, msg.ID)

	if task != nil {
		middleware.RepliesPending.Inc()
		go func() {
			<-task.Done()
			middleware.RepliesPending.Dec()
		}()
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: msg})
}

// SendImage appends a user image message. Image sends never schedule a reply
// and are not throttled.
func (h *Handlers) SendImage(c *gin.Context) {
	roomID := c.Param("id")

	var req SendImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.chatSvc.SendImage(c.Request.Context(), roomID, strings.TrimSpace(req.Image))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyImage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image must not be empty")
		case errors.Is(err, services.ErrRoomNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatroom not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: msg})
}

// LoadHistory prepends one simulated page of older messages to the thread and
// returns it. Once the archive is exhausted it responds 204.
func (h *Handlers) LoadHistory(c *gin.Context) {
	roomID := c.Param("id")

	batch, hasMore, err := h.chatSvc.LoadOlder(c.Request.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatroom not found")
		case errors.Is(err, services.ErrHistoryExhausted):
			noContent(c)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Client went away mid-fetch; 499 is conventional for that.
			c.AbortWithStatus(499)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, HistoryResponse{Messages: batch, HasMore: hasMore})
}

// replayMessage resolves the original message for a replayed send. It returns
// false when the record or the message is gone (expiry, room deletion).
func (h *Handlers) replayMessage(c *gin.Context, roomID string) (domain.Message, bool) {
	if h.store == nil {
		return domain.Message{}, false
	}
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey {
		return domain.Message{}, false
	}
	rec, err := h.store.GetIdempotency(c.Request.Context(), roomID, key, timeNowUTC())
	if err != nil {
		return domain.Message{}, false
	}
	msgs, err := h.chatSvc.Messages(c.Request.Context(), roomID)
	if err != nil {
		return domain.Message{}, false
	}
	for _, m := range msgs {
		if m.ID == rec.MessageID {
			return m, true
		}
	}
	return domain.Message{}, false
}

// recordIdempotency persists the (room, key) record for a completed send.
// Failures are tolerated; the worst case is a retry appending twice.
func (h *Handlers) recordIdempotency(c *gin.Context, roomID, messageID string) {
	if h.store == nil {
		return
	}
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey {
		return
	}
	if _, err := h.store.CreateIdempotency(c.Request.Context(), roomID, key, messageID, h.idemTTL); err != nil &&
		!errors.Is(err, store.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).
			Str("chatroom_id", roomID).
			Msg("failed to record idempotency key")
	}
}

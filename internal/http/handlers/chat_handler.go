// Chatroom HTTP handlers.
//
// This file exposes REST endpoints for chatroom resources:
//   - POST   /chatrooms              (create)
//   - GET    /chatrooms              (list, with current selection)
//   - DELETE /chatrooms/{id}         (delete, idempotent)
//   - PUT    /chatrooms/{id}/select  (select)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/services"
	"github.com/avendal/go-chatroom-backend/internal/store"
)

//
// Service contracts
//

// ChatService defines the chat intents consumed by HTTP handlers.
// Implementations must be safe for concurrent use.
type ChatService interface {
	// CreateRoom starts a new chatroom with an optional title.
	CreateRoom(ctx context.Context, title string) domain.Chatroom
	// DeleteRoom removes a chatroom and its thread; unknown ids no-op.
	DeleteRoom(ctx context.Context, roomID string)
	// SelectRoom records the room selection.
	SelectRoom(ctx context.Context, roomID string) error
	// Rooms returns the full chat snapshot.
	Rooms(ctx context.Context) domain.ChatState
	// Messages returns the room's thread.
	Messages(ctx context.Context, roomID string) ([]domain.Message, error)
	// SendText appends a user message and schedules one simulated reply.
	SendText(ctx context.Context, roomID, text string) (domain.Message, *services.ReplyTask, error)
	// SendImage appends a user image message.
	SendImage(ctx context.Context, roomID, image string) (domain.Message, error)
	// LoadOlder prepends one simulated page of older messages.
	LoadOlder(ctx context.Context, roomID string) ([]domain.Message, bool, error)
}

// AuthService defines the login intents consumed by HTTP handlers.
type AuthService interface {
	SetPhoneNumber(ctx context.Context, phone string) error
	SetCountryCode(ctx context.Context, code string) error
	RequestOTP(ctx context.Context) string
	VerifyOTP(ctx context.Context, submitted string) error
	Logout(ctx context.Context)
	Session(ctx context.Context) domain.AuthSession
}

// CountryDirectory lists countries with dialing codes.
type CountryDirectory interface {
	List(ctx context.Context) []domain.Country
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for chatrooms, messages, auth, and the
// country directory.
type Handlers struct {
	chatSvc   ChatService
	authSvc   AuthService
	countries CountryDirectory
	store     *store.Store
	idemTTL   time.Duration
}

// New constructs a Handlers instance bound to the given services. st may be
// nil, which disables idempotency replay (tests).
func New(chatSvc ChatService, authSvc AuthService, dir CountryDirectory, st *store.Store, idemTTL time.Duration) *Handlers {
	return &Handlers{chatSvc: chatSvc, authSvc: authSvc, countries: dir, store: st, idemTTL: idemTTL}
}

//
// DTOs
//

// CreateChatroomRequest is the JSON payload for creating a chatroom.
type CreateChatroomRequest struct {
	// Title optionally names the room; a placeholder is used when empty.
	Title string `json:"title"`
}

// ListChatroomsResponse wraps the room list and the current selection.
type ListChatroomsResponse struct {
	Chatrooms          []domain.Chatroom `json:"chatrooms"`
	SelectedChatroomID *string           `json:"selectedChatroomId"`
}

//
// Handlers
//

// CreateChatroom creates a room and returns the resource with status 201.
// An empty title is allowed; the service substitutes its placeholder.
func (h *Handlers) CreateChatroom(c *gin.Context) {
	var req CreateChatroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	room := h.chatSvc.CreateRoom(c.Request.Context(), strings.TrimSpace(req.Title))
	ok(c, http.StatusCreated, room)
}

// ListChatrooms returns every room plus the selected room id.
func (h *Handlers) ListChatrooms(c *gin.Context) {
	snap := h.chatSvc.Rooms(c.Request.Context())
	ok(c, http.StatusOK, ListChatroomsResponse{
		Chatrooms:          snap.Chatrooms,
		SelectedChatroomID: snap.SelectedChatroomID,
	})
}

// DeleteChatroom removes a room. Deleting an unknown id still returns 204;
// the operation is idempotent end to end.
func (h *Handlers) DeleteChatroom(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chatroom id must be a UUID")
		return
	}
	h.chatSvc.DeleteRoom(c.Request.Context(), roomID)
	noContent(c)
}

// SelectChatroom records the selection, 404 for unknown rooms.
func (h *Handlers) SelectChatroom(c *gin.Context) {
	roomID := c.Param("id")
	if err := h.chatSvc.SelectRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatroom not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// Room HTTP handlers.
//
// This file exposes REST endpoints for chat room resources:
//   - POST   /rooms              (get-or-create for an appointment)
//   - GET    /rooms              (list caller's rooms, ETag support)
//   - GET    /rooms/{id}         (room detail)
//   - DELETE /rooms/{id}         (retire; admin only)
//   - GET    /admin/chat-stats   (service-wide totals; admin only)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunsingh165/HealthCare/internal/domain"
	"github.com/arjunsingh165/HealthCare/internal/repo"
	"github.com/arjunsingh165/HealthCare/internal/services"
)

//
// Service contracts (context-aware)
//

// RoomService defines room lifecycle and authorization operations consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RoomService interface {
	// GetOrCreate returns the room bound to an appointment, creating it once.
	GetOrCreate(ctx context.Context, appointmentID, patientID, doctorID string) (*domain.ChatRoom, error)
	// ListForUser returns the caller's rooms with previews and unread counts.
	ListForUser(ctx context.Context, userID string) ([]services.RoomView, error)
	// Get fetches a room by ID.
	Get(ctx context.Context, roomID string) (*domain.ChatRoom, error)
	// Authorize verifies the caller may access the room.
	Authorize(ctx context.Context, roomID, userID string) (*domain.ChatRoom, *domain.User, error)
	// User resolves a caller identity to its stored record.
	User(ctx context.Context, userID string) (*domain.User, error)
	// Deactivate retires a room in response to an external signal.
	Deactivate(ctx context.Context, roomID string) error
	// Totals returns service-wide room/message counts.
	Totals(ctx context.Context) (*repo.ChatTotals, error)
}

// MessageService defines message history and read-state operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Append persists a new message in the room's total order.
	Append(ctx context.Context, roomID, senderID, kind, content, attachment string) (*domain.Message, error)
	// History returns the full ordered room history.
	History(ctx context.Context, roomID string) ([]domain.Message, error)
	// HistoryPage returns a page of the room history and the total count.
	HistoryPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error)
	// MarkRead flips unread messages not sent by the reader; returns count.
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for rooms, messages, and read-state.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	roomSvc RoomService
	msgSvc  MessageService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(roomSvc RoomService, msgSvc MessageService) *Handlers {
	return &Handlers{roomSvc: roomSvc, msgSvc: msgSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it).
// Identity issuance is upstream's responsibility; this core trusts the value.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// CreateRoomRequest is the JSON payload for resolving an appointment's room.
type CreateRoomRequest struct {
	// AppointmentID references the accepted appointment owning the room.
	AppointmentID string `json:"appointment_id" binding:"required"`
	// PatientID is the patient participant identity.
	PatientID string `json:"patient_id" binding:"required"`
	// DoctorID is the doctor participant identity.
	DoctorID string `json:"doctor_id" binding:"required"`
}

// ListRoomsResponse wraps the caller's room views.
type ListRoomsResponse struct {
	Rooms []services.RoomView `json:"rooms"`
}

//
// Handlers
//

// CreateRoom godoc
// @ID          createRoom
// @Summary     Resolve the chat room for an appointment
// @Description Returns the room bound to the appointment, creating it on first call. Idempotent.
// @Tags        Rooms
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateRoomRequest  true  "Appointment and participants"
//
// @Success     201  {object}  domain.ChatRoom
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Participants conflict"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rooms [post]
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment_id, patient_id and doctor_id are required")
		return
	}

	room, err := h.roomSvc.GetOrCreate(c.Request.Context(), req.AppointmentID, req.PatientID, req.DoctorID)
	if err != nil {
		if errors.Is(err, services.ErrRoomConflict) {
			fail(c, http.StatusConflict, ErrCodeRoomConflict, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, room)
}

// ListRooms godoc
// @ID          listRooms
// @Summary     List the caller's chat rooms
// @Description Returns rooms where the caller is patient or doctor (admins see all), with last-message previews and unread counts. Supports weak ETag via If-None-Match.
// @Tags        Rooms
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "Caller identity"            example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches" example(W/\"abc123\")
//
// @Success     200  {object} handlers.ListRoomsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     403  {object} handlers.ErrorResponse "Unknown identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /rooms [get]
func (h *Handlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okCast := h.roomSvc.(*services.RoomService); okCast {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.RoomsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"rooms:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	views, err := h.roomSvc.ListForUser(ctx, uid)
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			fail(c, http.StatusForbidden, ErrCodeAccessDenied, "unknown caller identity")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRoomsResponse{Rooms: views})
}

// GetRoom godoc
// @ID          getRoom
// @Summary     Fetch one chat room
// @Description Returns the room if the caller is a participant or an admin.
// @Tags        Rooms
// @Produce     json
//
// @Param       X-User-ID  header  string  true "Caller identity"  example(user123)
// @Param       id         path    string  true "Room ID (UUID)"   format(uuid)
//
// @Success     200  {object} domain.ChatRoom
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Room not found"
// @Router      /rooms/{id} [get]
func (h *Handlers) GetRoom(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	room, _, err := h.roomSvc.Authorize(c.Request.Context(), roomID, userID(c))
	if err != nil {
		failAuthorize(c, err)
		return
	}
	ok(c, http.StatusOK, room)
}

// DeactivateRoom godoc
// @ID          deactivateRoom
// @Summary     Retire a chat room
// @Description Clears the room's active flag in response to an external appointment signal. The room and its history are retained. Admin only.
// @Tags        Rooms
// @Produce     json
//
// @Param       X-User-ID  header  string  true "Caller identity (admin)"  example(admin1)
// @Param       id         path    string  true "Room ID (UUID)"           format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Admin required"
// @Failure     404  {object} handlers.ErrorResponse "Room not found"
// @Router      /rooms/{id} [delete]
func (h *Handlers) DeactivateRoom(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	_, user, err := h.roomSvc.Authorize(c.Request.Context(), roomID, userID(c))
	if err != nil {
		failAuthorize(c, err)
		return
	}
	if user.Role != domain.RoleAdmin {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "admin privilege required")
		return
	}

	if err := h.roomSvc.Deactivate(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			fail(c, http.StatusNotFound, ErrCodeRoomNotFound, "chat room not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// ChatStats godoc
// @ID          chatStats
// @Summary     Service-wide chat statistics
// @Description Returns total rooms, active rooms, and total messages. Admin only.
// @Tags        Admin
// @Produce     json
//
// @Param       X-User-ID  header  string  true "Caller identity (admin)"  example(admin1)
//
// @Success     200  {object} repo.ChatTotals
// @Failure     403  {object} handlers.ErrorResponse "Admin required"
// @Router      /admin/chat-stats [get]
func (h *Handlers) ChatStats(c *gin.Context) {
	u, err := h.roomSvc.User(c.Request.Context(), userID(c))
	if err != nil || u.Role != domain.RoleAdmin {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "admin privilege required")
		return
	}

	totals, err := h.roomSvc.Totals(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, totals)
}

// failAuthorize maps RoomService.Authorize errors to HTTP responses.
func failAuthorize(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		fail(c, http.StatusNotFound, ErrCodeRoomNotFound, "chat room not found")
	case errors.Is(err, services.ErrAccessDenied):
		fail(c, http.StatusForbidden, ErrCodeAccessDenied, "not a participant of this chat room")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

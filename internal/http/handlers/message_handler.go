// Message HTTP handlers.
//
// This file exposes the non-realtime companion surface for room messages:
//   - GET  /rooms/{id}/messages  (ordered history, paginated)
//   - POST /rooms/{id}/messages  (append without a socket)
//   - POST /rooms/{id}/read      (mark the room read for the caller)
//
// The ordered history returned here is the authoritative source for
// reconstructing a conversation when a client (re)joins the room socket.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arjunsingh165/HealthCare/internal/domain"
	"github.com/arjunsingh165/HealthCare/internal/services"
	"github.com/arjunsingh165/HealthCare/internal/utils"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for appending a message over REST.
type PostMessageRequest struct {
	// Kind selects text/image/file; empty defaults to text.
	Kind string `json:"kind" example:"text"`
	// Content is the message text; may be empty only with an attachment.
	Content string `json:"content" example:"Hello doctor"`
	// Attachment optionally references an uploaded file or image.
	Attachment string `json:"attachment,omitempty" example:"chat_files/report.pdf"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// MarkReadResponse reports how many messages the call transitioned to read.
type MarkReadResponse struct {
	MarkedRead int64 `json:"marked_read"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 200
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List room messages (ascending, paginated)
// @Description Returns the room history ordered by time ascending. Participants and admins only.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(user123)
// @Param       id         path    string  true  "Room ID (UUID)"   format(uuid)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(200) default(50)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Room not found"
// @Router      /rooms/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	if _, _, err := h.roomSvc.Authorize(c.Request.Context(), roomID, userID(c)); err != nil {
		failAuthorize(c, err)
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.msgSvc.HistoryPage(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a message to a room
// @Description Persists a message authored by the caller. Participants only; admins may observe but not post.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true "Caller identity"                 example(user123)
// @Param       id         path    string  true "Room ID (UUID)"                  format(uuid)
// @Param       body       body    handlers.PostMessageRequest  true "Message payload"
//
// @Success     201  {object} domain.Message
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Room not found"
// @Router      /rooms/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.msgSvc.Append(c.Request.Context(), roomID, userID(c), req.Kind, req.Content, req.Attachment)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			fail(c, http.StatusNotFound, ErrCodeRoomNotFound, "chat room not found")
		case errors.Is(err, services.ErrAccessDenied):
			fail(c, http.StatusForbidden, ErrCodeAccessDenied, "not a participant of this chat room")
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrTooLong), errors.Is(err, services.ErrBadKind):
			fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, msg)
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark a room read for the caller
// @Description Flips unread messages not sent by the caller to read; idempotent (second call reports 0).
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  true "Caller identity"  example(user123)
// @Param       id         path    string  true "Room ID (UUID)"   format(uuid)
//
// @Success     200  {object} handlers.MarkReadResponse
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Room not found"
// @Router      /rooms/{id}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := uuid.Parse(roomID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a UUID")
		return
	}

	uid := userID(c)
	if _, _, err := h.roomSvc.Authorize(c.Request.Context(), roomID, uid); err != nil {
		failAuthorize(c, err)
		return
	}

	n, err := h.msgSvc.MarkRead(c.Request.Context(), roomID, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MarkReadResponse{MarkedRead: n})
}

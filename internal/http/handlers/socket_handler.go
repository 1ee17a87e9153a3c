// Websocket gateway for realtime room traffic.
//
// A connection is opened against one room and moves through
// Unauthenticated → Authorized → Joined → Closed. Authorization happens
// before the connection is ever admitted to the registry; a denied identity
// is closed with an application close code and produces no membership side
// effect. While Joined, inbound frames are dispatched by kind:
//
//	chat_message  persist, then fan the enriched event out to the room
//	mark_read     flip the caller's unread set; silent (no broadcast)
//	anything else forward-compatible no-op
//
// Persistence failures abort only that frame's delivery (the client gets an
// error acknowledgment and the connection stays open). Broadcasting to an
// empty room is silent, which is how clients distinguish "my send failed"
// from "no one else is joined".
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arjunsingh165/HealthCare/internal/http/middleware"
	"github.com/arjunsingh165/HealthCare/internal/realtime"
	"github.com/arjunsingh165/HealthCare/internal/services"
	"github.com/arjunsingh165/HealthCare/internal/sysutil"
)

// Inbound/outbound event kinds.
const (
	eventChatMessage = "chat_message"
	eventMarkRead    = "mark_read"
	eventError       = "error"
)

// socketReadTimeout bounds the wait for the next inbound frame; pongs refresh it.
const socketReadTimeout = 60 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement is handled by the CORS layer for the REST
		// surface; socket callers are already identity-scoped.
		return true
	},
}

// inboundEvent is the client → server frame.
type inboundEvent struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

// outboundEvent is the enriched server → room frame.
type outboundEvent struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	SenderRole string `json:"sender_role"`
	Timestamp  string `json:"timestamp"`
	MessageID  string `json:"message_id"`
}

// errorEvent is the per-frame error acknowledgment sent only to the author.
type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SocketOptions tunes the websocket boundary.
type SocketOptions struct {
	// EchoSender controls whether the author's own connection receives the
	// broadcast copy of their message. Off by default: clients that render
	// locally on send would otherwise show duplicates.
	EchoSender bool
	// SendBuffer is the outbound queue depth per connection (<=0 = default).
	SendBuffer int
	// ReadLimit caps inbound frame size in bytes (<=0 = default 1MiB).
	ReadLimit int64
}

// ChatSocket handles the websocket endpoint for realtime room traffic.
type ChatSocket struct {
	roomSvc  RoomService
	msgSvc   MessageService
	registry *realtime.Registry
	opts     SocketOptions
}

// NewChatSocket constructs the socket handler bound to the given services
// and registry.
func NewChatSocket(roomSvc RoomService, msgSvc MessageService, registry *realtime.Registry, opts SocketOptions) *ChatSocket {
	return &ChatSocket{roomSvc: roomSvc, msgSvc: msgSvc, registry: registry, opts: opts}
}

// Handle upgrades the HTTP request, authorizes the caller against the target
// room, joins the registry, and processes frames until disconnect.
func (s *ChatSocket) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")
		uid := sysutil.FirstNonEmpty(userID(c), c.Query("user_id"))

		room, user, authErr := s.roomSvc.Authorize(c.Request.Context(), roomID, uid)

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; nothing else to do.
			return
		}

		lg := middleware.LoggerFrom(c)

		// Unauthenticated → Closed: deliver the reason as an application
		// close code; the connection never touches the registry.
		if authErr != nil {
			code, reason := closeReason(authErr)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(5*time.Second))
			_ = ws.Close()
			lg.Warn().
				Str("room_id", roomID).
				Str("user_id", uid).
				Str("reason", reason).
				Msg("socket rejected")
			return
		}

		// Authorized → Joined.
		c.Set(socketIdentityKey, socketIdentity{Name: user.FullName, Role: user.Role})
		conn := realtime.NewConnection(user.ID, room.ID, ws, s.opts.SendBuffer)
		s.registry.Add(room.ID, conn)
		defer func() {
			// Joined → Closed: deregister before releasing the socket so no
			// broadcast can reach a freed connection.
			s.registry.Remove(room.ID, conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		readLimit := s.opts.ReadLimit
		if readLimit <= 0 {
			readLimit = 1 << 20
		}
		ws.SetReadLimit(readLimit)
		_ = ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		})

		lg.Info().
			Str("room_id", room.ID).
			Str("user_id", user.ID).
			Str("role", user.Role).
			Msg("socket joined")

		for {
			var ev inboundEvent
			if err := ws.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					lg.Warn().Err(err).Str("room_id", room.ID).Msg("socket read failed")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(socketReadTimeout))

			switch ev.Type {
			case eventChatMessage:
				s.handleChatMessage(c, conn, ev)
			case eventMarkRead:
				if _, err := s.msgSvc.MarkRead(c.Request.Context(), conn.RoomID, conn.UserID); err != nil {
					lg.Error().Err(err).Str("room_id", conn.RoomID).Msg("mark read failed")
				}
			default:
				// Unknown kinds are a forward-compatible no-op.
				lg.Debug().Str("type", ev.Type).Msg("ignoring unknown socket event")
			}
		}
	}
}

// handleChatMessage persists the frame and fans the enriched event out to the
// room. Failures are acknowledged to the author only; the room sees nothing.
func (s *ChatSocket) handleChatMessage(c *gin.Context, conn *realtime.Connection, ev inboundEvent) {
	lg := middleware.LoggerFrom(c)

	msg, err := s.msgSvc.Append(c.Request.Context(), conn.RoomID, conn.UserID, ev.Kind, ev.Message, ev.Attachment)
	if err != nil {
		ack := errorEvent{Type: eventError, Message: err.Error()}
		switch {
		case errors.Is(err, services.ErrEmptyMessage),
			errors.Is(err, services.ErrTooLong),
			errors.Is(err, services.ErrBadKind):
			ack.Code = ErrCodeValidationFailed
		case errors.Is(err, services.ErrAccessDenied):
			ack.Code = ErrCodeAccessDenied
		case errors.Is(err, services.ErrRoomNotFound):
			ack.Code = ErrCodeRoomNotFound
		default:
			ack.Code = ErrCodeSendFailed
			lg.Error().Err(err).Str("room_id", conn.RoomID).Msg("message persist failed")
		}
		if payload, merr := json.Marshal(ack); merr == nil {
			_ = conn.Send(payload)
		}
		return
	}

	// Sender attributes were verified during Authorize; re-read is not
	// needed because users are immutable for the socket's lifetime.
	user := socketUser(c)

	out := outboundEvent{
		Type:       eventChatMessage,
		Message:    msg.Content,
		SenderID:   msg.SenderID,
		SenderName: user.Name,
		SenderRole: user.Role,
		Timestamp:  msg.CreatedAt.UTC().Format(time.RFC3339),
		MessageID:  msg.ID,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		lg.Error().Err(err).Msg("marshal outbound event")
		return
	}

	exclude := conn.ID
	if s.opts.EchoSender {
		exclude = ""
	}
	s.registry.Broadcast(conn.RoomID, payload, exclude)
}

// socketIdentity caches the authorized sender's display attributes on the
// gin context so each frame does not re-query the user table.
type socketIdentity struct {
	Name string
	Role string
}

const socketIdentityKey = "socketIdentity"

func socketUser(c *gin.Context) socketIdentity {
	if v, ok := c.Get(socketIdentityKey); ok {
		if id, ok := v.(socketIdentity); ok {
			return id
		}
	}
	return socketIdentity{}
}

// closeReason maps authorization failures to application close codes.
func closeReason(err error) (int, string) {
	if errors.Is(err, services.ErrRoomNotFound) {
		return CloseRoomNotFound, "room not found"
	}
	return CloseAccessDenied, "access denied"
}

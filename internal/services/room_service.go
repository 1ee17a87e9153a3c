// Package services – RoomService
//
// This file implements the RoomService, which owns the appointment→room
// mapping and room-level access control. It enforces the 1:1 invariant
// between an appointment and its room (get-or-create semantics that survive
// concurrent first calls), verifies participant identity for reads and
// joins, and composes the room list view with last-message previews and
// per-caller unread counts.
//
// Service-level errors (e.g., ErrRoomNotFound, ErrAccessDenied) are
// returned for predictable cases so handlers can map them to HTTP results
// and websocket close codes consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arjunsingh165/HealthCare/internal/domain"
	"github.com/arjunsingh165/HealthCare/internal/repo"
)

// RoomView is the room list projection: the room itself plus display data
// the clients need to render a conversation entry without extra round trips.
type RoomView struct {
	domain.ChatRoom
	PatientName string          `json:"patient_name"`
	DoctorName  string          `json:"doctor_name"`
	LastMessage *domain.Message `json:"last_message,omitempty"`
	LastPreview string          `json:"last_preview,omitempty"`
	UnreadCount int64           `json:"unread_count"`
}

// RoomService provides room lifecycle and authorization operations.
type RoomService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewRoomService constructs a RoomService bound to the given database.
func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{DB: db}
}

// GetOrCreate returns the room bound to appointmentID, creating it when none
// exists yet. The operation is idempotent: repeated calls for the same
// appointment return the same room, and concurrent first calls resolve
// through the unique index on appointment_id followed by a re-read.
//
// The caller (the booking subsystem) is responsible for only invoking this
// once the appointment is in an accepted state; that precondition is not
// re-validated here. ErrRoomConflict is returned when an existing room's
// stored participants disagree with the supplied ones.
func (s *RoomService) GetOrCreate(ctx context.Context, appointmentID, patientID, doctorID string) (*domain.ChatRoom, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(attribute.String("appointment.id", appointmentID)),
	)
	defer span.End()

	if room, err := repo.GetRoomByAppointment(ctx, s.DB, appointmentID); err == nil {
		return s.checkParticipants(room, patientID, doctorID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room, err := repo.CreateRoom(ctx, s.DB, appointmentID, patientID, doctorID)
	if err == nil {
		return room, nil
	}

	// A concurrent first call may have won the unique-index race; the insert
	// failure is benign as long as the room is now readable.
	room, rerr := repo.GetRoomByAppointment(ctx, s.DB, appointmentID)
	if rerr != nil {
		return nil, err
	}
	return s.checkParticipants(room, patientID, doctorID)
}

// checkParticipants verifies that an existing room's stored participants
// match the supplied identities.
func (s *RoomService) checkParticipants(room *domain.ChatRoom, patientID, doctorID string) (*domain.ChatRoom, error) {
	if room.PatientID != patientID || room.DoctorID != doctorID {
		return nil, ErrRoomConflict
	}
	return room, nil
}

// Get fetches a room by ID, mapping a missing row to ErrRoomNotFound.
func (s *RoomService) Get(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	room, err := repo.GetRoom(ctx, s.DB, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// Authorize resolves the room and the caller, and verifies the caller is a
// room participant or an admin. It returns both records so callers can build
// enriched events without re-fetching.
//
// Errors: ErrRoomNotFound when the room is missing; ErrAccessDenied when the
// identity is unknown or not permitted.
func (s *RoomService) Authorize(ctx context.Context, roomID, userID string) (*domain.ChatRoom, *domain.User, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !room.HasParticipant(user.ID) && user.Role != domain.RoleAdmin {
		return nil, nil, ErrAccessDenied
	}
	return room, user, nil
}

// User resolves userID to its stored record. An unknown identity maps to
// ErrAccessDenied; it has no standing anywhere in the service.
func (s *RoomService) User(ctx context.Context, userID string) (*domain.User, error) {
	user, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	return user, nil
}

// ListForUser returns the caller's rooms ordered by last activity. Patients
// and doctors see rooms they participate in; admins see every room. Each
// entry carries participant names, the last message (with preview), and the
// caller's unread count.
func (s *RoomService) ListForUser(ctx context.Context, userID string) ([]RoomView, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	user, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}

	var rooms []domain.ChatRoom
	if user.Role == domain.RoleAdmin {
		rooms, err = repo.ListRooms(ctx, s.DB)
	} else {
		rooms, err = repo.ListRoomsForUser(ctx, s.DB, userID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := RoomView{ChatRoom: room}
		if p, err := repo.GetUser(ctx, s.DB, room.PatientID); err == nil {
			view.PatientName = p.FullName
		}
		if d, err := repo.GetUser(ctx, s.DB, room.DoctorID); err == nil {
			view.DoctorName = d.FullName
		}
		last, err := repo.LastMessage(ctx, s.DB, room.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			view.LastMessage = last
			view.LastPreview = last.Preview()
		}
		unread, err := repo.CountUnread(ctx, s.DB, room.ID, userID)
		if err != nil {
			return nil, err
		}
		view.UnreadCount = unread
		out = append(out, view)
	}
	return out, nil
}

// Deactivate retires a room in response to an explicit external signal
// (appointment completed or cancelled upstream). The row is kept; only the
// active flag changes. Missing rooms map to ErrRoomNotFound.
func (s *RoomService) Deactivate(ctx context.Context, roomID string) error {
	if err := repo.DeactivateRoom(ctx, s.DB, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return nil
}

// Totals returns service-wide room and message counts for the admin
// statistics endpoint.
func (s *RoomService) Totals(ctx context.Context) (*repo.ChatTotals, error) {
	return repo.Totals(ctx, s.DB)
}

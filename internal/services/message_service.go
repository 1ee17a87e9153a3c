// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns message durability and read-state. It validates inbound content,
// enforces that only room participants may append, serializes the
// append-and-order step per room so concurrent writers can never invert the
// (CreatedAt, Seq) total order, and exposes the ordered history used to
// reconstruct a conversation on (re)join.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// room/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arjunsingh165/HealthCare/internal/domain"
	"github.com/arjunsingh165/HealthCare/internal/repo"
)

// MessageService coordinates message persistence, ordering, and read-state.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message content length; 0 disables the guard.
	MaxContentRunes int

	// appendMu holds one mutex per room id. The append critical section is
	// scoped to a single room so unrelated rooms never contend.
	appendMu sync.Map
}

// NewMessageService constructs a MessageService with a sane content cap.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db, MaxContentRunes: 5000}
}

// roomLock returns the append mutex for roomID, creating it on first use.
func (s *MessageService) roomLock(roomID string) *sync.Mutex {
	mu, _ := s.appendMu.LoadOrStore(roomID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append validates and persists a new message in the room's total order.
//
// Rules:
//   - senderID must be the room's patient or doctor (ErrAccessDenied);
//     admins may observe rooms but cannot post without membership.
//   - content may be empty only when an attachment reference is present
//     (ErrEmptyMessage).
//   - kind defaults to "text" and must be one of text/image/file.
//
// The (timestamp, seq) pair is assigned under the room's append lock, making
// the completion order of Append calls the single source of truth for
// message order regardless of client-observed send order.
func (s *MessageService) Append(ctx context.Context, roomID, senderID, kind, content, attachment string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	if kind == "" {
		kind = domain.KindText
	}
	switch kind {
	case domain.KindText, domain.KindImage, domain.KindFile:
	default:
		return nil, ErrBadKind
	}

	content = strings.TrimSpace(content)
	if content == "" && attachment == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	room, err := repo.GetRoom(ctx, s.DB, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.HasParticipant(senderID) {
		return nil, ErrAccessDenied
	}

	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := repo.NextSeq(tx, roomID)
		if err != nil {
			return err
		}
		m, err := repo.CreateMessage(tx, roomID, senderID, kind, content, attachment, seq)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchRoom(ctx, tx, roomID, m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the room's full ordered history, ascending by
// (CreatedAt, Seq). The sequence is finite and safely re-requestable.
func (s *MessageService) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	return repo.ListMessages(ctx, s.DB, roomID)
}

// HistoryPage returns a page of the room history and the total count.
// It applies defaults for invalid page/pageSize.
func (s *MessageService) HistoryPage(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "HistoryPage",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, roomID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, roomID, offset, pageSize)
	return items, total, err
}

// MarkRead flips the read flag on every unread message in the room that was
// not sent by readerID, returning the number of messages affected. The
// operation is idempotent: a second call with no new messages yields 0.
func (s *MessageService) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", readerID),
		),
	)
	defer span.End()

	return repo.MarkMessagesRead(ctx, s.DB, roomID, readerID)
}

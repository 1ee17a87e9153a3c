// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunsingh165/HealthCare/internal/domain"
)

// CreateMessage inserts a new message row. The caller supplies the per-room
// sequence number; NextSeq must be read under the room's append lock so that
// (CreatedAt, Seq) can never invert between concurrent writers.
func CreateMessage(db *gorm.DB, roomID, senderID, kind, content, attachment string, seq int64) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   senderID,
		Kind:       kind,
		Content:    content,
		Attachment: attachment,
		Seq:        seq,
		CreatedAt:  time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// NextSeq returns the next per-room sequence number (1 for an empty room).
func NextSeq(db *gorm.DB, roomID string) (int64, error) {
	var max int64
	err := db.Raw("SELECT COALESCE(MAX(seq), 0) FROM messages WHERE room_id = ?", roomID).Scan(&max).Error
	return max + 1, err
}

// ListMessages returns the full room history ordered deterministically
// (CreatedAt ASC, Seq ASC). The result is finite and safely re-requestable.
func ListMessages(ctx context.Context, db *gorm.DB, roomID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, seq ASC").
		Find(&out).Error
	return out, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, Seq ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, seq ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error (as tests expect).
func CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE room_id = ?", roomID).
		Scan(&total).Error
	return total, err
}

// LastMessage returns the most recent message in a room, or nil when the room
// has no messages yet.
func LastMessage(ctx context.Context, db *gorm.DB, roomID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, seq DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// MarkMessagesRead flips is_read on every unread message in the room whose
// sender is not readerID, returning the number of rows affected. A second
// call with no new messages in between affects 0 rows; a reader can never
// mark their own messages.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, roomID, readerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND is_read = ? AND sender_id <> ?", roomID, false, readerID).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread returns the number of unread messages in a room that were not
// sent by userID. Used for room list views.
func CountUnread(ctx context.Context, db *gorm.DB, roomID, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND is_read = ? AND sender_id <> ?", roomID, false, userID).
		Count(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

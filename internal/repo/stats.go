// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer and for the
// admin chat statistics endpoint. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/arjunsingh165/HealthCare/internal/domain"
)

// RoomsStats returns aggregate metadata for a user's rooms: the total number
// of rows and the maximum UpdatedAt timestamp among those rows.
//
// It executes two lightweight queries against the chat_rooms table scoped to
// the provided userID (as patient or doctor). When the user participates in
// no rooms, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total rooms for userID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func RoomsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("patient_id = ? OR doctor_id = ?", userID, userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ChatTotals holds service-wide messaging aggregates for the admin
// statistics endpoint.
type ChatTotals struct {
	TotalRooms    int64 `json:"total_chat_rooms"`
	ActiveRooms   int64 `json:"active_chat_rooms"`
	TotalMessages int64 `json:"total_messages"`
}

// Totals counts rooms (total and active) and messages across the whole
// service. Reserved for admin callers.
func Totals(ctx context.Context, db *gorm.DB) (*ChatTotals, error) {
	var t ChatTotals
	if err := db.WithContext(ctx).Model(&domain.ChatRoom{}).Count(&t.TotalRooms).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("is_active = ?", true).
		Count(&t.ActiveRooms).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.Message{}).Count(&t.TotalMessages).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

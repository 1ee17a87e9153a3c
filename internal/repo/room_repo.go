// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatRoom
// model and the User projection it references.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room or user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.RoomService) which enforces participant checks, the
// appointment 1:1 invariant, and view composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunsingh165/HealthCare/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateRoom inserts a new ChatRoom row bound to appointmentID with the given
// participants. The room ID is a randomly generated UUID (string), CreatedAt
// is set to UTC, and the room starts active.
//
// The unique index on appointment_id makes concurrent first creations for the
// same appointment fail with a constraint error; callers resolve that by
// re-reading (see services.RoomService.GetOrCreate).
func CreateRoom(ctx context.Context, db *gorm.DB, appointmentID, patientID, doctorID string) (*domain.ChatRoom, error) {
	r := &domain.ChatRoom{
		ID:            uuid.NewString(),
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DoctorID:      doctorID,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRoom fetches a single room by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoomByAppointment fetches the room bound to appointmentID, or
// ErrNotFound when no room exists for that appointment yet.
func GetRoomByAppointment(ctx context.Context, db *gorm.DB, appointmentID string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	err := db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRoomsForUser returns all rooms where userID is the patient or the
// doctor, ordered by last activity descending. It returns an empty slice if
// the user participates in no rooms.
func ListRoomsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	err := db.WithContext(ctx).
		Where("patient_id = ? OR doctor_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// ListRooms returns every room ordered by last activity descending. Reserved
// for admin callers; access control lives in the service layer.
func ListRooms(ctx context.Context, db *gorm.DB) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	err := db.WithContext(ctx).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// DeactivateRoom clears the active flag of a room. If no rows are affected
// (room missing), it returns ErrNotFound. The row itself is retained.
func DeactivateRoom(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchRoom bumps a room's updated_at so activity ordering follows the most
// recent message, not the last metadata edit.
func TouchRoom(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// GetUser fetches a user projection by ID, or ErrNotFound when absent.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user projection row. Upstream identity sync and test
// seeding are the only expected callers.
func CreateUser(ctx context.Context, db *gorm.DB, id, fullName, role string) (*domain.User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	u := &domain.User{
		ID:        id,
		FullName:  fullName,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arjunsingh165/HealthCare/internal/domain"
)

func newRoomRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("room_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateRoom_Success_PersistsAndSetsFields(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})

	start := time.Now().UTC().Add(-time.Minute)
	room, err := CreateRoom(context.Background(), db, "appt-1", "p1", "d1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID == "" || room.AppointmentID != "appt-1" || room.PatientID != "p1" || room.DoctorID != "d1" {
		t.Fatalf("unexpected ChatRoom fields: %+v", room)
	}
	if !room.IsActive {
		t.Fatalf("new room must start active")
	}
	if room.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", room.CreatedAt)
	}
	// round-trip
	var got domain.ChatRoom
	if err := db.First(&got, "id = ?", room.ID).Error; err != nil {
		t.Fatalf("load created room: %v", err)
	}
	if got.AppointmentID != "appt-1" || got.PatientID != "p1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateRoom_DuplicateAppointment_Errors(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})

	if _, err := CreateRoom(context.Background(), db, "appt-1", "p1", "d1"); err != nil {
		t.Fatalf("first CreateRoom: %v", err)
	}
	if _, err := CreateRoom(context.Background(), db, "appt-1", "p2", "d2"); err == nil {
		t.Fatalf("expected unique constraint error for second room on same appointment")
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})

	_, err := GetRoom(context.Background(), db, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRoomByAppointment(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})

	created, err := CreateRoom(context.Background(), db, "appt-7", "p1", "d1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	got, err := GetRoomByAppointment(context.Background(), db, "appt-7")
	if err != nil {
		t.Fatalf("GetRoomByAppointment: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("room mismatch: got %s want %s", got.ID, created.ID)
	}
	if _, err := GetRoomByAppointment(context.Background(), db, "appt-none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown appointment, got %v", err)
	}
}

func TestListRoomsForUser_FiltersAndOrders(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})
	ctx := context.Background()

	r1, _ := CreateRoom(ctx, db, "a1", "p1", "d1")
	r2, _ := CreateRoom(ctx, db, "a2", "p1", "d2")
	r3, _ := CreateRoom(ctx, db, "a3", "p2", "d1")

	// Deterministic last-activity order: r1 newest, then r2, then r3.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{r3.ID, r2.ID, r1.ID} {
		if err := TouchRoom(ctx, db, id, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("TouchRoom: %v", err)
		}
	}

	asPatient, err := ListRoomsForUser(ctx, db, "p1")
	if err != nil {
		t.Fatalf("ListRoomsForUser(p1): %v", err)
	}
	if len(asPatient) != 2 || asPatient[0].ID != r1.ID || asPatient[1].ID != r2.ID {
		t.Fatalf("unexpected rooms for p1: %+v", asPatient)
	}

	asDoctor, err := ListRoomsForUser(ctx, db, "d1")
	if err != nil {
		t.Fatalf("ListRoomsForUser(d1): %v", err)
	}
	if len(asDoctor) != 2 || asDoctor[0].ID != r1.ID || asDoctor[1].ID != r3.ID {
		t.Fatalf("unexpected rooms for d1: %+v", asDoctor)
	}

	none, err := ListRoomsForUser(ctx, db, "stranger")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty slice for stranger, got %v (%v)", none, err)
	}
}

func TestListRooms_ReturnsAll(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := CreateRoom(ctx, db, fmt.Sprintf("a%d", i), "p1", "d1"); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
	}
	all, err := ListRooms(ctx, db)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(all))
	}
}

func TestDeactivateRoom(t *testing.T) {
	db := newRoomRepoDB(t, &domain.ChatRoom{})
	ctx := context.Background()

	room, err := CreateRoom(ctx, db, "a1", "p1", "d1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := DeactivateRoom(ctx, db, room.ID); err != nil {
		t.Fatalf("DeactivateRoom: %v", err)
	}
	got, err := GetRoom(ctx, db, room.ID)
	if err != nil {
		t.Fatalf("GetRoom after deactivate: %v", err)
	}
	if got.IsActive {
		t.Fatalf("room should be inactive")
	}
	if err := DeactivateRoom(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
}

func TestUserCRUD(t *testing.T) {
	db := newRoomRepoDB(t, &domain.User{})
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "", "Dr. Who", domain.RoleDoctor)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated ID")
	}
	got, err := GetUser(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.FullName != "Dr. Who" || got.Role != domain.RoleDoctor {
		t.Fatalf("unexpected user: %+v", got)
	}
	if _, err := GetUser(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arjunsingh165/HealthCare/internal/domain"
)

func newStatsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("stats_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.User{}, &domain.ChatRoom{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRoomsStats_EmptyUser(t *testing.T) {
	db := newStatsDB(t)

	count, maxAt, err := RoomsStats(context.Background(), db, "nobody")
	if err != nil {
		t.Fatalf("RoomsStats: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestRoomsStats_CountsAndMaxUpdatedAt(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()

	r1, _ := CreateRoom(ctx, db, "a1", "p1", "d1")
	r2, _ := CreateRoom(ctx, db, "a2", "p1", "d2")
	if _, err := CreateRoom(ctx, db, "a3", "p2", "d2"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	older := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)
	if err := TouchRoom(ctx, db, r1.ID, older); err != nil {
		t.Fatalf("TouchRoom: %v", err)
	}
	if err := TouchRoom(ctx, db, r2.ID, newer); err != nil {
		t.Fatalf("TouchRoom: %v", err)
	}

	count, maxAt, err := RoomsStats(ctx, db, "p1")
	if err != nil {
		t.Fatalf("RoomsStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxAt == nil || !maxAt.Equal(newer) {
		t.Fatalf("maxUpdatedAt = %v, want %v", maxAt, newer)
	}
}

func TestTotals(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()

	r1, _ := CreateRoom(ctx, db, "a1", "p1", "d1")
	r2, _ := CreateRoom(ctx, db, "a2", "p2", "d2")
	if err := DeactivateRoom(ctx, db, r2.ID); err != nil {
		t.Fatalf("DeactivateRoom: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		if _, err := CreateMessage(db, r1.ID, "p1", domain.KindText, fmt.Sprintf("m%d", i), "", i); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	totals, err := Totals(ctx, db)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.TotalRooms != 2 || totals.ActiveRooms != 1 || totals.TotalMessages != 3 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestTotals_Error_NoTable(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "totals_notable.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if _, err := Totals(context.Background(), db); err == nil {
		t.Fatalf("expected error without schema")
	}
}

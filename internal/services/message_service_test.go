package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arjunsingh165/HealthCare/internal/domain"
	"github.com/arjunsingh165/HealthCare/internal/repo"
)

func newMsgSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("msg_svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedMsgRoom(t *testing.T, db *gorm.DB) *domain.ChatRoom {
	t.Helper()
	room, err := repo.CreateRoom(context.Background(), db, fmt.Sprintf("appt-%d", time.Now().UnixNano()), "p1", "d1")
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func TestMessageService_Append_Success(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)

	msg, err := svc.Append(context.Background(), room.ID, "p1", "", "  hello doctor  ", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if msg.ID == "" || msg.Seq != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Kind != domain.KindText {
		t.Fatalf("empty kind should default to text, got %q", msg.Kind)
	}
	if msg.Content != "hello doctor" {
		t.Fatalf("content not trimmed: %q", msg.Content)
	}
	if msg.IsRead {
		t.Fatalf("new message must start unread")
	}

	// Appending bumps room activity.
	got, err := repo.GetRoom(context.Background(), db, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.UpdatedAt.Before(msg.CreatedAt) {
		t.Fatalf("room UpdatedAt %v not bumped to message time %v", got.UpdatedAt, msg.CreatedAt)
	}
}

func TestMessageService_Append_Validation(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)
	ctx := context.Background()

	if _, err := svc.Append(ctx, room.ID, "p1", "voice", "x", ""); !errors.Is(err, ErrBadKind) {
		t.Fatalf("expected ErrBadKind, got %v", err)
	}
	if _, err := svc.Append(ctx, room.ID, "p1", domain.KindText, "   ", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	// Whitespace-only content is fine when an attachment is present.
	if _, err := svc.Append(ctx, room.ID, "p1", domain.KindImage, "", "uploads/scan.png"); err != nil {
		t.Fatalf("attachment-only Append: %v", err)
	}

	svc.MaxContentRunes = 10
	if _, err := svc.Append(ctx, room.ID, "p1", domain.KindText, strings.Repeat("a", 11), ""); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	if _, err := svc.Append(ctx, room.ID, "p1", domain.KindText, strings.Repeat("a", 10), ""); err != nil {
		t.Fatalf("content at the cap should pass: %v", err)
	}
}

func TestMessageService_Append_RoomAndAccessChecks(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)
	ctx := context.Background()

	if _, err := svc.Append(ctx, "missing", "p1", domain.KindText, "hi", ""); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Append(ctx, room.ID, "stranger", domain.KindText, "hi", ""); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	// Admins observe but do not post without membership.
	if _, err := svc.Append(ctx, room.ID, "a1", domain.KindText, "hi", ""); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for non-member admin, got %v", err)
	}
}

func TestMessageService_Append_ConcurrentSeqUnique(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "p1"
			if i%2 == 0 {
				sender = "d1"
			}
			_, errs[i] = svc.Append(context.Background(), room.ID, sender, domain.KindText, fmt.Sprintf("msg %d", i), "")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	history, err := svc.History(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d messages, got %d", writers, len(history))
	}
	seen := map[int64]bool{}
	for i, m := range history {
		if seen[m.Seq] {
			t.Fatalf("duplicate seq %d", m.Seq)
		}
		seen[m.Seq] = true
		if m.Seq != int64(i+1) {
			t.Fatalf("history position %d has seq %d", i, m.Seq)
		}
	}
}

func TestMessageService_HistoryPage(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)
	ctx := context.Background()

	// Empty room: zero total, empty page.
	items, total, err := svc.HistoryPage(ctx, room.ID, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty HistoryPage = (%d items, total %d, %v)", len(items), total, err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.Append(ctx, room.ID, "p1", domain.KindText, fmt.Sprintf("m%d", i+1), ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	items, total, err = svc.HistoryPage(ctx, room.ID, 2, 2)
	if err != nil {
		t.Fatalf("HistoryPage: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("page 2: %d items, total %d", len(items), total)
	}
	if items[0].Content != "m3" || items[1].Content != "m4" {
		t.Fatalf("unexpected page contents: %q, %q", items[0].Content, items[1].Content)
	}

	// Invalid paging falls back to defaults.
	items, total, err = svc.HistoryPage(ctx, room.ID, 0, -1)
	if err != nil || total != 5 || len(items) != 5 {
		t.Fatalf("default paging = (%d items, total %d, %v)", len(items), total, err)
	}
}

func TestMessageService_MarkRead(t *testing.T) {
	db := newMsgSvcDB(t)
	svc := NewMessageService(db)
	room := seedMsgRoom(t, db)
	ctx := context.Background()

	if _, err := svc.Append(ctx, room.ID, "d1", domain.KindText, "results are in", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := svc.Append(ctx, room.ID, "p1", domain.KindText, "thanks", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	n, err := svc.MarkRead(ctx, room.ID, "p1")
	if err != nil || n != 1 {
		t.Fatalf("MarkRead = %d, %v; want 1", n, err)
	}
	n, err = svc.MarkRead(ctx, room.ID, "p1")
	if err != nil || n != 0 {
		t.Fatalf("repeat MarkRead = %d, %v; want 0", n, err)
	}
}

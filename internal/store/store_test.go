package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/avendal/go-chatroom-backend/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "state.db")); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	sel := "r1"
	in := domain.ChatState{
		Chatrooms:          []domain.Chatroom{{ID: "r1", Title: "First", CreatedAt: "2024-01-01T00:00:00Z"}},
		SelectedChatroomID: &sel,
		Messages: map[string][]domain.Message{
			"r1": {{ID: "m1", Sender: domain.SenderUser, Text: "hi", Timestamp: "1:02:03 PM", Type: domain.TypeText}},
		},
	}
	if err := s.Save(ChatStateKey, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out domain.ChatState
	if err := s.Load(ChatStateKey, &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Chatrooms) != 1 || out.Chatrooms[0].ID != "r1" {
		t.Fatalf("rooms = %+v", out.Chatrooms)
	}
	if out.SelectedChatroomID == nil || *out.SelectedChatroomID != "r1" {
		t.Fatalf("selection = %v", out.SelectedChatroomID)
	}
	if got := out.Messages["r1"]; len(got) != 1 || got[0].Text != "hi" {
		t.Fatalf("thread = %+v", got)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save(AuthStateKey, domain.AuthSession{CountryCode: "+91"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(AuthStateKey, domain.AuthSession{CountryCode: "+44", IsVerified: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out domain.AuthSession
	if err := s.Load(AuthStateKey, &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.CountryCode != "+44" || !out.IsVerified {
		t.Fatalf("session = %+v", out)
	}
}

func TestStore_LoadMissingKey(t *testing.T) {
	s := openTestStore(t)

	var out domain.ChatState
	if err := s.Load("absent", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestStore_LoadCorruptBlob(t *testing.T) {
	s := openTestStore(t)

	e := Entry{Key: ChatStateKey, Value: []byte("{not json"), UpdatedAt: time.Now().UTC()}
	if err := s.db.Save(&e).Error; err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	var out domain.ChatState
	err := s.Load(ChatStateKey, &out)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want raw unmarshal error", err)
	}
}

func TestStore_Remove(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save(AuthStateKey, domain.NewAuthSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Remove(AuthStateKey); err != nil {
		t.Fatalf("remove: %v", err)
	}
	var out domain.AuthSession
	if err := s.Load(AuthStateKey, &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound after remove", err)
	}
	// Removing again is a no-op.
	if err := s.Remove(AuthStateKey); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

// ----- Idempotency records -----

func TestIdempotency_CreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateIdempotency(ctx, "r1", "key-1", "m1", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.MessageID != "m1" || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}

	got, err := s.GetIdempotency(ctx, "r1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageID != "m1" {
		t.Fatalf("got = %+v", got)
	}
}

func TestIdempotency_DuplicateKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateIdempotency(ctx, "r1", "key-1", "m1", time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateIdempotency(ctx, "r1", "key-1", "m2", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}
	// Same key in another room is a distinct tuple.
	if _, err := s.CreateIdempotency(ctx, "r2", "key-1", "m3", time.Hour); err != nil {
		t.Fatalf("cross-room create: %v", err)
	}
}

func TestIdempotency_ExpiredRecordInvisible(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateIdempotency(ctx, "r1", "key-1", "m1", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	future := time.Now().UTC().Add(2 * time.Minute)
	if _, err := s.GetIdempotency(ctx, "r1", "key-1", future); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound past expiry", err)
	}
}

func TestIdempotency_EmptyRoomID(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetIdempotency(context.Background(), " ", "k", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

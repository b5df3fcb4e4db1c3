package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ekkarat74/Message-Chat/internal/config"
	"github.com/ekkarat74/Message-Chat/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestSaveAssignsID(t *testing.T) {
	st := newTestStore(t)
	saved, err := st.Save(context.Background(), store.Message{
		Room:   "alpha",
		Author: "ann",
		Body:   "hi",
		Kind:   "text",
		Time:   "09:15",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("save did not assign an id")
	}
	if saved.SavedAt.IsZero() {
		t.Fatal("save did not stamp SavedAt")
	}
}

func TestListByRoomOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		if _, err := st.Save(ctx, store.Message{Room: "alpha", Author: "ann", Body: body, Kind: "text"}); err != nil {
			t.Fatalf("save %q: %v", body, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := st.Save(ctx, store.Message{Room: "beta", Author: "bo", Body: "elsewhere", Kind: "text"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	msgs, err := st.ListByRoom(ctx, "alpha")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Fatalf("wrong order: %q then %q", msgs[0].Body, msgs[1].Body)
	}
}

func TestFindRoomAndDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	saved, err := st.Save(ctx, store.Message{Room: "alpha", Author: "ann", Body: "bye", Kind: "text"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	room, err := st.FindRoomAndDelete(ctx, saved.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if room != "alpha" {
		t.Fatalf("expected room alpha, got %q", room)
	}

	if _, err := st.FindRoomAndDelete(ctx, saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	msgs, err := st.ListByRoom(ctx, "alpha")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("message still listed after delete: %+v", msgs)
	}
}

func TestUserLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user := &store.User{ID: "u1", Username: "ann", Password: "hashed", Avatar: "old.png", CreatedAt: time.Now()}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := st.CreateUser(ctx, &store.User{ID: "u2", Username: "ann"}); err == nil {
		t.Fatal("duplicate username must fail")
	}

	got, err := st.GetUserByUsername(ctx, "ann")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != "u1" || got.Password != "hashed" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if err := st.UpdateAvatar(ctx, "ann", "new.png"); err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	got, err = st.GetUserByUsername(ctx, "ann")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Avatar != "new.png" {
		t.Fatalf("avatar not updated: %q", got.Avatar)
	}

	if err := st.UpdateAvatar(ctx, "ghost", "x.png"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update for unknown user should be ErrNotFound, got %v", err)
	}
	if _, err := st.GetUserByUsername(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user should be ErrNotFound, got %v", err)
	}
}

func TestRoomLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{ID: "r1", Name: "general", Password: "hashed", CreatedAt: time.Now()}
	if err := st.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.CreateRoom(ctx, &store.Room{ID: "r2", Name: "general"}); err == nil {
		t.Fatal("duplicate room name must fail")
	}

	got, err := st.GetRoomByName(ctx, "general")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.ID != "r1" || got.Password != "hashed" {
		t.Fatalf("unexpected room: %+v", got)
	}

	if _, err := st.GetRoomByName(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown room should be ErrNotFound, got %v", err)
	}
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"classdesk/internal/model"
)

func TestMemoryDuplicateEmail(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateUser(ctx, model.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	err := store.CreateUser(ctx, model.User{ID: "u2", Email: "a@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestMemoryUserLookup(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID err = %v, want ErrNotFound", err)
	}

	user := model.User{ID: "u1", Email: "a@example.com", Role: model.RoleStudent}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := store.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("ID = %q", got.ID)
	}

	// Lookup is case sensitive, same as the unique index.
	if _, err := store.GetUserByEmail(ctx, "A@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("uppercase lookup err = %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdatePasswordHash(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.UpdatePasswordHash(ctx, "missing", "hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := store.CreateUser(ctx, model.User{ID: "u1", Email: "a@example.com", PasswordHash: "old"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.UpdatePasswordHash(ctx, "u1", "new"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	user, err := store.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q", user.PasswordHash)
	}
}

func TestMemoryItems(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateItem(ctx, model.Item{ID: "i1", OwnerID: "u1", Content: "first"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if err := store.CreateItem(ctx, model.Item{ID: "i2", OwnerID: "u2", Content: "second"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	all, err := store.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d", len(all))
	}
	if all[0].ID != "i1" || all[1].ID != "i2" {
		t.Errorf("insertion order not preserved: %v", all)
	}

	mine, err := store.ListItemsByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListItemsByOwner: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "i1" {
		t.Errorf("owner filter wrong: %v", mine)
	}

	if err := store.DeleteItem(ctx, "i1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if err := store.DeleteItem(ctx, "i1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetItem(ctx, "i1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem after delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryAuditLogsNewestFirst(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"l1", "l2", "l3"} {
		entry := model.AuditLog{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.CreateAuditLog(ctx, entry); err != nil {
			t.Fatalf("CreateAuditLog: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, 2)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].ID != "l3" || logs[1].ID != "l2" {
		t.Errorf("order = [%s %s], want [l3 l2]", logs[0].ID, logs[1].ID)
	}
}

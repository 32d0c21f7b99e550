// Package repository defines the storage contract for users, items, and
// audit logs, with a PostgreSQL implementation and an in-memory one for
// tests and local development.
package repository

import (
	"context"
	"errors"

	"classdesk/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

type Store interface {
	// CreateUser inserts a user. Email uniqueness is enforced by the
	// store itself, not by a check-then-insert sequence; a duplicate
	// returns ErrDuplicateEmail.
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	CreateItem(ctx context.Context, item model.Item) error
	GetItem(ctx context.Context, id string) (model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID string) ([]model.Item, error)
	DeleteItem(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry model.AuditLog) error
	// ListAuditLogs returns entries newest first.
	ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error)
}

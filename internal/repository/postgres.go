package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"classdesk/internal/model"
)

const uniqueViolation = "23505"

type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) CreateUser(ctx context.Context, user model.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (model.User, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateItem(ctx context.Context, item model.Item) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO items (id, content, owner_id, owner_email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.Content, item.OwnerID, item.OwnerEmail, item.CreatedAt)
	return err
}

func (p *Postgres) GetItem(ctx context.Context, id string) (model.Item, error) {
	var item model.Item
	row := p.pool.QueryRow(ctx, `
		SELECT id, content, owner_id, owner_email, created_at
		FROM items
		WHERE id = $1
	`, id)
	err := row.Scan(&item.ID, &item.Content, &item.OwnerID, &item.OwnerEmail, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Item{}, ErrNotFound
		}
		return model.Item{}, err
	}
	return item, nil
}

func (p *Postgres) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, content, owner_id, owner_email, created_at
		FROM items
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (p *Postgres) ListItemsByOwner(ctx context.Context, ownerID string) ([]model.Item, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, content, owner_id, owner_email, created_at
		FROM items
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (p *Postgres) DeleteItem(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateAuditLog(ctx context.Context, entry model.AuditLog) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, email, method, path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Email, entry.Method, entry.Path, entry.CreatedAt)
	return err
}

func (p *Postgres) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, email, method, path, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]model.AuditLog, 0)
	for rows.Next() {
		var entry model.AuditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Email, &entry.Method, &entry.Path, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func collectItems(rows pgx.Rows) ([]model.Item, error) {
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.Content, &item.OwnerID, &item.OwnerEmail, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

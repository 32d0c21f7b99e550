package repository

import (
	"context"
	"sync"

	"classdesk/internal/model"
)

// Memory is a mutex-guarded Store used by handler tests and local runs
// without a database. Email uniqueness is atomic under the lock, matching
// the unique-index guarantee of the Postgres store.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]model.User
	byEmail map[string]string
	items   map[string]model.Item
	order   []string
	logs    []model.AuditLog
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]model.User),
		byEmail: make(map[string]string),
		items:   make(map[string]model.Item),
	}
}

func (m *Memory) CreateUser(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *Memory) CreateItem(_ context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *Memory) GetItem(_ context.Context, id string) (model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return model.Item{}, ErrNotFound
	}
	return item, nil
}

func (m *Memory) ListItems(_ context.Context) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]model.Item, 0, len(m.order))
	for _, id := range m.order {
		if item, ok := m.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *Memory) ListItemsByOwner(_ context.Context, ownerID string) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]model.Item, 0)
	for _, id := range m.order {
		if item, ok := m.items[id]; ok && item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) CreateAuditLog(_ context.Context, entry model.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) ListAuditLogs(_ context.Context, limit int) ([]model.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := make([]model.AuditLog, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, m.logs[i])
	}
	return logs, nil
}

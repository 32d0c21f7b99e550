package model

import "time"

// Roles form a closed enum. Signup coerces anything else to student.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Item struct {
	ID         string
	Content    string
	OwnerID    string
	OwnerEmail string
	CreatedAt  time.Time
}

type AuditLog struct {
	ID        string
	UserID    string
	Email     string
	Method    string
	Path      string
	CreatedAt time.Time
}

package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Deletion is a hard delete: removing an account
// must also remove every resource it owns, so there is no soft-delete flag to
// leave dangling rows behind.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsAdmin       bool       `bun:"is_admin,notnull,default:false" json:"is_admin,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Sanitized returns a copy safe to hand outside the store layer: the password
// hash never leaves it.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}

	clone := *u
	clone.PasswordHash = ""
	return &clone
}

// Workout is a resource owned exclusively by one account. Rows are removed as
// part of account deletion (cascade), never orphaned.
type Workout struct {
	bun.BaseModel   `bun:"table:workouts,alias:wrk"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID          uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Title           string     `bun:"title,notnull" json:"title,omitempty"`
	Notes           string     `bun:"notes" json:"notes,omitempty"`
	DurationMinutes int        `bun:"duration_minutes" json:"duration_minutes,omitempty"`
	PerformedAt     *time.Time `bun:"performed_at,nullzero" json:"performed_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email so uniqueness is effectively
// case-insensitive and the database index is the single serialization point.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

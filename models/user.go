package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// User is keyed by normalized mobile number
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	MobileNumber string    `json:"mobile_number" db:"mobile_number"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Agent is the 1:1 profile of an agent-role user
type Agent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

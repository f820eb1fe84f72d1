package models

import "time"

// Role of a marketplace account.
const (
	RoleTenant = "tenant"
	RoleOwner  = "owner"
)

// User is a marketplace account (tenant or property owner).
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

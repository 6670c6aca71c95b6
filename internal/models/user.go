package models

import "time"

// Role codes mirror the seeded roles table.
const (
	RoleCodeAdmin   = "admin"
	RoleCodeManager = "manager"
	RoleCodeEnvoy   = "envoy"
)

// Role ids are fixed by the seeding order.
const (
	RoleIDAdmin   = 1
	RoleIDManager = 2
	RoleIDEnvoy   = 3
)

// Role is an application role referenced by users.
type Role struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Code string `db:"code" json:"code"`
}

// EnvoyType classifies what kind of ambassador a user is (student, lecturer,
// school, organization).
type EnvoyType struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// User represents an application account stored in the users table.
// AlternativeID is the externally-issued session identifier; rotating it
// invalidates any outstanding session references without changing the primary key.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	PhoneNumber   string     `db:"phone_number" json:"phone_number"`
	AvatarURL     *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	RoleID        int        `db:"role_id" json:"role_id"`
	EnvoyTypeID   *int       `db:"envoy_type_id" json:"envoy_type_id,omitempty"`
	Activated     bool       `db:"activated" json:"activated"`
	AlternativeID string     `db:"alternative_id" json:"-"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

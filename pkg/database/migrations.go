package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema statements are ordered by foreign-key dependency. Delete behaviour is
// declared explicitly per edge: RESTRICT everywhere except presenter->students,
// which cascades so removing an envoy pairing removes its attributed enrollments.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		code VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS envoy_types (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(20) NOT NULL DEFAULT '',
		avatar_url TEXT,
		role_id INT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
		envoy_type_id INT REFERENCES envoy_types(id) ON DELETE SET NULL,
		activated BOOLEAN NOT NULL DEFAULT FALSE,
		alternative_id UUID NOT NULL UNIQUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action VARCHAR(50) NOT NULL,
		resource VARCHAR(100) NOT NULL,
		resource_id TEXT,
		old_values JSONB,
		new_values JSONB,
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admission_types (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS admissions (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		description VARCHAR(500) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		finished BOOLEAN NOT NULL DEFAULT FALSE,
		rose INT NOT NULL,
		type_id UUID NOT NULL REFERENCES admission_types(id) ON DELETE RESTRICT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_admissions_start_date ON admissions(start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_admissions_end_date ON admissions(end_date)`,
	`CREATE TABLE IF NOT EXISTS admission_presenters (
		id UUID PRIMARY KEY,
		referral_code VARCHAR(20) NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		admission_id UUID NOT NULL REFERENCES admissions(id) ON DELETE RESTRICT,
		user_joined_time TIMESTAMPTZ,
		UNIQUE (admission_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS student_presenters (
		student_id VARCHAR(20) NOT NULL,
		presenter_id UUID NOT NULL REFERENCES admission_presenters(id) ON DELETE CASCADE,
		student_joined_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		student_paid_time TIMESTAMPTZ,
		PRIMARY KEY (student_id, presenter_id)
	)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent, so running on each boot is safe.
func Migrate(db *sqlx.DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

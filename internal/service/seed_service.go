package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

// SeedConfig carries the bootstrap account credentials.
type SeedConfig struct {
	RootEmail    string
	RootPassword string
}

// SeedService provisions the reference data the application expects on boot:
// roles, the root account, manager accounts, admission types and envoy types.
// Every step checks before inserting, so repeated boots are no-ops; the unique
// constraints backstop the check if two instances ever race.
type SeedService struct {
	db     *sqlx.DB
	config SeedConfig
	logger *zap.Logger
}

// NewSeedService constructs a SeedService.
func NewSeedService(db *sqlx.DB, config SeedConfig, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RootEmail == "" {
		config.RootEmail = "root@admission.local"
	}
	if config.RootPassword == "" {
		config.RootPassword = "changeme"
	}
	return &SeedService{db: db, config: config, logger: logger}
}

// Run executes every seeding step in order. Each step commits independently so
// a failure leaves earlier steps in place.
func (s *SeedService) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(ctx context.Context, tx *sqlx.Tx) error
	}{
		{"roles", s.seedRoles},
		{"root user", s.seedRootUser},
		{"managers", s.seedManagers},
		{"admission types", s.seedAdmissionTypes},
		{"envoy types", s.seedEnvoyTypes},
	}

	for _, step := range steps {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin seed step %s: %w", step.name, err)
		}
		if err := step.fn(ctx, tx); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("seed step %s: %w", step.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit seed step %s: %w", step.name, err)
		}
		s.logger.Debug("seed step applied", zap.String("step", step.name))
	}

	s.logger.Info("reference data seeded")
	return nil
}

func (s *SeedService) seedRoles(ctx context.Context, tx *sqlx.Tx) error {
	roles := []models.Role{
		{Name: "Administrator", Code: models.RoleCodeAdmin},
		{Name: "Manager", Code: models.RoleCodeManager},
		{Name: "Envoy", Code: models.RoleCodeEnvoy},
	}
	for _, role := range roles {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM roles WHERE code = $1 LIMIT 1`, role.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check role %s: %w", role.Code, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO roles (name, code) VALUES ($1, $2)`, role.Name, role.Code); err != nil {
			return err
		}
	}
	return nil
}

func (s *SeedService) seedRootUser(ctx context.Context, tx *sqlx.Tx) error {
	var exists int
	err := tx.GetContext(ctx, &exists, `SELECT 1 FROM users WHERE email = $1 LIMIT 1`, s.config.RootEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check root user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.config.RootPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, full_name, role_id, activated, alternative_id) VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		uuid.NewString(), s.config.RootEmail, string(hash), "Root", models.RoleIDAdmin, uuid.NewString())
	return err
}

func (s *SeedService) seedManagers(ctx context.Context, tx *sqlx.Tx) error {
	managers := []struct {
		email string
		name  string
	}{
		{"manager1@admission.local", "Manager One"},
		{"manager2@admission.local", "Manager Two"},
		{"manager3@admission.local", "Manager Three"},
	}
	for _, m := range managers {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM users WHERE email = $1 LIMIT 1`, m.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check manager %s: %w", m.email, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s.config.RootPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, full_name, role_id, activated, alternative_id) VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
			uuid.NewString(), m.email, string(hash), m.name, models.RoleIDManager, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

func (s *SeedService) seedAdmissionTypes(ctx context.Context, tx *sqlx.Tx) error {
	names := []string{"Undergraduate", "Transfer", "Master", "Doctoral"}
	for _, name := range names {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM admission_types WHERE name = $1 LIMIT 1`, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check admission type %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO admission_types (id, name) VALUES ($1, $2)`, uuid.NewString(), name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SeedService) seedEnvoyTypes(ctx context.Context, tx *sqlx.Tx) error {
	names := []string{"Student", "Lecturer", "School", "Organization"}
	for _, name := range names {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM envoy_types WHERE name = $1 LIMIT 1`, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check envoy type %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO envoy_types (name) VALUES ($1)`, name); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

const admissionColumns = `a.id, a.name, a.description, a.start_date, a.end_date, a.finished, a.rose, a.type_id, a.created_at, a.updated_at`

// AdmissionRepository handles persistence of admission campaigns and their types.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// ListAvailable returns campaigns open for new envoy registration: not yet
// finished and whose end date has not passed. Ordered by start date for a
// stable listing.
func (r *AdmissionRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.AdmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS type_name
        FROM admissions a
        JOIN admission_types t ON t.id = a.type_id
        WHERE a.finished = FALSE AND a.end_date >= $1
        ORDER BY a.start_date`, admissionColumns)
	var admissions []models.AdmissionDetail
	if err := r.db.SelectContext(ctx, &admissions, query, now); err != nil {
		return nil, fmt.Errorf("list available admissions: %w", err)
	}
	return admissions, nil
}

// ListFinished returns all closed campaigns.
func (r *AdmissionRepository) ListFinished(ctx context.Context) ([]models.AdmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS type_name
        FROM admissions a
        JOIN admission_types t ON t.id = a.type_id
        WHERE a.finished = TRUE
        ORDER BY a.start_date`, admissionColumns)
	var admissions []models.AdmissionDetail
	if err := r.db.SelectContext(ctx, &admissions, query); err != nil {
		return nil, fmt.Errorf("list finished admissions: %w", err)
	}
	return admissions, nil
}

// ListRunning returns every campaign not yet closed. This is a superset of
// ListAvailable: past-due campaigns stay "running" until staff finish them
// (reward settlement happens in that window).
func (r *AdmissionRepository) ListRunning(ctx context.Context) ([]models.AdmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS type_name
        FROM admissions a
        JOIN admission_types t ON t.id = a.type_id
        WHERE a.finished = FALSE
        ORDER BY a.start_date`, admissionColumns)
	var admissions []models.AdmissionDetail
	if err := r.db.SelectContext(ctx, &admissions, query); err != nil {
		return nil, fmt.Errorf("list running admissions: %w", err)
	}
	return admissions, nil
}

// FindByID returns a campaign by its ID.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	const query = `SELECT id, name, description, start_date, end_date, finished, rose, type_id, created_at, updated_at FROM admissions WHERE id = $1`
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, query, id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// Create persists a new campaign record.
func (r *AdmissionRepository) Create(ctx context.Context, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if admission.CreatedAt.IsZero() {
		admission.CreatedAt = now
	}
	admission.UpdatedAt = now

	const query = `INSERT INTO admissions (id, name, description, start_date, end_date, finished, rose, type_id, created_at, updated_at)
        VALUES (:id, :name, :description, :start_date, :end_date, :finished, :rose, :type_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("create admission: %w", err)
	}
	return nil
}

// Update modifies the editable campaign fields.
func (r *AdmissionRepository) Update(ctx context.Context, admission *models.Admission) error {
	admission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE admissions SET name = :name, description = :description, start_date = :start_date, end_date = :end_date, rose = :rose, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	return nil
}

// Finish marks a campaign closed. The transition is one-way; rows already
// finished are not matched so the affected count reveals a stale request.
func (r *AdmissionRepository) Finish(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE admissions SET finished = TRUE, updated_at = $2 WHERE id = $1 AND finished = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("finish admission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish admission affected rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a campaign. The presenter foreign key restricts the delete
// when envoys are enrolled; callers translate that violation to a conflict.
func (r *AdmissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM admissions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete admission: %w", err)
	}
	return nil
}

// ListTypes returns every admission type ordered by name.
func (r *AdmissionRepository) ListTypes(ctx context.Context) ([]models.AdmissionType, error) {
	const query = `SELECT id, name FROM admission_types ORDER BY name`
	var types []models.AdmissionType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list admission types: %w", err)
	}
	return types, nil
}

// FindTypeByID returns a single admission type.
func (r *AdmissionRepository) FindTypeByID(ctx context.Context, id string) (*models.AdmissionType, error) {
	const query = `SELECT id, name FROM admission_types WHERE id = $1`
	var t models.AdmissionType
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateType inserts a new admission type.
func (r *AdmissionRepository) CreateType(ctx context.Context, t *models.AdmissionType) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	const query = `INSERT INTO admission_types (id, name) VALUES (:id, :name)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create admission type: %w", err)
	}
	return nil
}

// TypeNameExists reports whether an admission type with the given name exists.
func (r *AdmissionRepository) TypeNameExists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT 1 FROM admission_types WHERE name = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check admission type name: %w", err)
	}
	return true, nil
}

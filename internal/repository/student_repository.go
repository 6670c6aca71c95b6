package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

// StudentRepository manages student enrollments attributed to envoys.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByAdmission enumerates every student attributed to the campaign through
// any of its envoys. A campaign with no envoys yields an empty slice.
func (r *StudentRepository) ListByAdmission(ctx context.Context, admissionID string) ([]models.StudentDetail, error) {
	const query = `SELECT s.student_id, s.presenter_id, s.student_joined_time, s.student_paid_time,
        p.referral_code, u.full_name AS envoy_name
        FROM student_presenters s
        LEFT JOIN admission_presenters p ON p.id = s.presenter_id
        LEFT JOIN users u ON u.id = p.user_id
        WHERE p.id IS NOT NULL AND p.admission_id = $1
        ORDER BY s.student_joined_time`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, admissionID); err != nil {
		return nil, fmt.Errorf("list admission students: %w", err)
	}
	return students, nil
}

// ExistsInAdmission reports whether the student already enrolled under any
// envoy of the campaign.
func (r *StudentRepository) ExistsInAdmission(ctx context.Context, studentID, admissionID string) (bool, error) {
	const query = `SELECT 1 FROM student_presenters s
        JOIN admission_presenters p ON p.id = s.presenter_id
        WHERE s.student_id = $1 AND p.admission_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, admissionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student enrollment: %w", err)
	}
	return true, nil
}

// Create records a student enrollment under a presenter. Duplicate
// (student_id, presenter_id) violations propagate untranslated.
func (r *StudentRepository) Create(ctx context.Context, enrollment *models.StudentPresenter) error {
	if enrollment.StudentJoinedTime.IsZero() {
		enrollment.StudentJoinedTime = time.Now().UTC()
	}
	const query = `INSERT INTO student_presenters (student_id, presenter_id, student_joined_time, student_paid_time)
        VALUES (:student_id, :presenter_id, :student_joined_time, :student_paid_time)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return err
	}
	return nil
}

// Find returns one enrollment by its composite key.
func (r *StudentRepository) Find(ctx context.Context, studentID, presenterID string) (*models.StudentPresenter, error) {
	const query = `SELECT student_id, presenter_id, student_joined_time, student_paid_time
        FROM student_presenters WHERE student_id = $1 AND presenter_id = $2`
	var enrollment models.StudentPresenter
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, presenterID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// MarkPaid stamps student_paid_time. The transition is append-only: an
// already paid enrollment is not matched and the affected count exposes it.
func (r *StudentRepository) MarkPaid(ctx context.Context, studentID, presenterID string, paidAt time.Time) (bool, error) {
	const query = `UPDATE student_presenters SET student_paid_time = $3
        WHERE student_id = $1 AND presenter_id = $2 AND student_paid_time IS NULL`
	res, err := r.db.ExecContext(ctx, query, studentID, presenterID, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark student paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark student paid affected rows: %w", err)
	}
	return affected > 0, nil
}

// CountByPresenter returns total and paid enrollment counts for a presenter,
// the inputs for envoy reward settlement.
func (r *StudentRepository) CountByPresenter(ctx context.Context, presenterID string) (total int, paid int, err error) {
	const query = `SELECT COUNT(*), COUNT(student_paid_time) FROM student_presenters WHERE presenter_id = $1`
	row := r.db.QueryRowxContext(ctx, query, presenterID)
	if err := row.Scan(&total, &paid); err != nil {
		return 0, 0, fmt.Errorf("count presenter students: %w", err)
	}
	return total, paid, nil
}

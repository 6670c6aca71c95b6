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

// PresenterRepository manages envoy-campaign pairings.
type PresenterRepository struct {
	db *sqlx.DB
}

// NewPresenterRepository constructs the repository.
func NewPresenterRepository(db *sqlx.DB) *PresenterRepository {
	return &PresenterRepository{db: db}
}

// IsRegisteredBy reports whether the user is already an envoy for the
// campaign. This is an advisory pre-check; the (admission_id, user_id) unique
// constraint remains the authoritative guard under concurrent requests.
func (r *PresenterRepository) IsRegisteredBy(ctx context.Context, admissionID, userID string) (bool, error) {
	const query = `SELECT 1 FROM admission_presenters WHERE admission_id = $1 AND user_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, admissionID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check envoy registration: %w", err)
	}
	return true, nil
}

// Create inserts a new pairing. Unique violations (duplicate pairing or
// referral code collision) propagate untranslated so the service can
// distinguish them by constraint.
func (r *PresenterRepository) Create(ctx context.Context, presenter *models.AdmissionPresenter) error {
	if presenter.ID == "" {
		presenter.ID = uuid.NewString()
	}
	const query = `INSERT INTO admission_presenters (id, referral_code, user_id, admission_id, user_joined_time)
        VALUES (:id, :referral_code, :user_id, :admission_id, :user_joined_time)`
	if _, err := r.db.NamedExecContext(ctx, query, presenter); err != nil {
		return err
	}
	return nil
}

// FindByID returns a pairing by its ID.
func (r *PresenterRepository) FindByID(ctx context.Context, id string) (*models.AdmissionPresenter, error) {
	const query = `SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE id = $1`
	var presenter models.AdmissionPresenter
	if err := r.db.GetContext(ctx, &presenter, query, id); err != nil {
		return nil, err
	}
	return &presenter, nil
}

// FindByAdmissionAndUser returns the user's pairing for a campaign, or
// sql.ErrNoRows when the user never joined it.
func (r *PresenterRepository) FindByAdmissionAndUser(ctx context.Context, admissionID, userID string) (*models.AdmissionPresenter, error) {
	const query = `SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE admission_id = $1 AND user_id = $2`
	var presenter models.AdmissionPresenter
	if err := r.db.GetContext(ctx, &presenter, query, admissionID, userID); err != nil {
		return nil, err
	}
	return &presenter, nil
}

// FindByReferralCode resolves a referral code to its pairing. The code is
// globally unique, so it alone determines both campaign and envoy.
func (r *PresenterRepository) FindByReferralCode(ctx context.Context, code string) (*models.AdmissionPresenter, error) {
	const query = `SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE referral_code = $1`
	var presenter models.AdmissionPresenter
	if err := r.db.GetContext(ctx, &presenter, query, code); err != nil {
		return nil, err
	}
	return &presenter, nil
}

// ListByAdmission returns the campaign's envoys with identity details.
func (r *PresenterRepository) ListByAdmission(ctx context.Context, admissionID string) ([]models.PresenterDetail, error) {
	const query = `SELECT p.id, p.referral_code, p.user_id, p.admission_id, p.user_joined_time,
        u.full_name AS envoy_name, u.email AS envoy_email
        FROM admission_presenters p
        JOIN users u ON u.id = p.user_id
        WHERE p.admission_id = $1
        ORDER BY u.full_name`
	var presenters []models.PresenterDetail
	if err := r.db.SelectContext(ctx, &presenters, query, admissionID); err != nil {
		return nil, fmt.Errorf("list admission envoys: %w", err)
	}
	return presenters, nil
}

// Approve records staff approval by stamping user_joined_time. Already
// approved pairings are not re-stamped.
func (r *PresenterRepository) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE admission_presenters SET user_joined_time = $2 WHERE id = $1 AND user_joined_time IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, approvedAt)
	if err != nil {
		return false, fmt.Errorf("approve envoy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve envoy affected rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a pairing; attributed student enrollments cascade away with it.
func (r *PresenterRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM admission_presenters WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete presenter: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admission-api/internal/models"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
)

const (
	referralCodeLen      = 12
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	applyPath            = "/mocks/student/apply?referral_code="
)

type presenterRepository interface {
	IsRegisteredBy(ctx context.Context, admissionID, userID string) (bool, error)
	Create(ctx context.Context, presenter *models.AdmissionPresenter) error
	FindByID(ctx context.Context, id string) (*models.AdmissionPresenter, error)
	FindByAdmissionAndUser(ctx context.Context, admissionID, userID string) (*models.AdmissionPresenter, error)
	FindByReferralCode(ctx context.Context, code string) (*models.AdmissionPresenter, error)
	ListByAdmission(ctx context.Context, admissionID string) ([]models.PresenterDetail, error)
	Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type envoyAdmissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Admission, error)
}

type envoyAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnvoyService manages envoy participation in campaigns.
type EnvoyService struct {
	presenters presenterRepository
	admissions envoyAdmissionRepository
	audits     envoyAuditRepository
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewEnvoyService constructs an EnvoyService.
func NewEnvoyService(presenters presenterRepository, admissions envoyAdmissionRepository, audits envoyAuditRepository, metrics *MetricsService, logger *zap.Logger) *EnvoyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnvoyService{presenters: presenters, admissions: admissions, audits: audits, metrics: metrics, logger: logger}
}

// Join registers the user as an envoy for an available campaign and issues a
// fresh referral code. The pre-check is advisory; the unique pairing
// constraint decides under concurrency, and a code collision is retried once
// with a new code.
func (s *EnvoyService) Join(ctx context.Context, admissionID, userID string) (*models.AdmissionPresenter, error) {
	admission, err := s.admissions.FindByID(ctx, admissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	now := time.Now().UTC()
	if admission.Finished || admission.EndDate.Before(now) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission is no longer open for registration")
	}

	registered, err := s.presenters.IsRegisteredBy(ctx, admissionID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration")
	}
	if registered {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you are already an envoy for this admission")
	}

	presenter, err := s.createWithFreshCode(ctx, admissionID, userID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEnvoyJoin()

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionEnvoyJoin,
		Resource:   "admission_presenters",
		ResourceID: &presenter.ID,
		NewValues:  []byte(fmt.Sprintf(`{"admission_id":%q}`, admissionID)),
	}); err != nil {
		s.logger.Warn("failed to record envoy join audit log", zap.Error(err))
	}

	return presenter, nil
}

func (s *EnvoyService) createWithFreshCode(ctx context.Context, admissionID, userID string) (*models.AdmissionPresenter, error) {
	for attempt := 0; attempt < 2; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate referral code")
		}

		presenter := &models.AdmissionPresenter{
			ReferralCode: code,
			UserID:       userID,
			AdmissionID:  admissionID,
		}

		err = s.presenters.Create(ctx, presenter)
		if err == nil {
			return presenter, nil
		}
		if isUniqueViolation(err, "admission_presenters_admission_id_user_id_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you are already an envoy for this admission")
		}
		if isUniqueViolation(err, "admission_presenters_referral_code_key") {
			s.logger.Warn("referral code collision, retrying", zap.String("code", code))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register envoy")
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "could not issue a unique referral code")
}

// ShareableLink derives the public application link for a referral code. The
// host comes from the incoming request so the link matches however the
// service is reached.
func (s *EnvoyService) ShareableLink(host, scheme, referralCode string) string {
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + host + applyPath + referralCode
}

// Registration returns the caller's pairing for a campaign.
func (s *EnvoyService) Registration(ctx context.Context, admissionID, userID string) (*models.AdmissionPresenter, error) {
	presenter, err := s.presenters.FindByAdmissionAndUser(ctx, admissionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "you are not an envoy for this admission")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load envoy registration")
	}
	return presenter, nil
}

// ListByAdmission lists the campaign's envoys for staff review.
func (s *EnvoyService) ListByAdmission(ctx context.Context, admissionID string) ([]models.PresenterDetail, error) {
	if _, err := s.admissions.FindByID(ctx, admissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	presenters, err := s.presenters.ListByAdmission(ctx, admissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list envoys")
	}
	return presenters, nil
}

// Approve confirms an envoy's participation. Approval is idempotent at the
// database level; a re-approve reports a conflict.
func (s *EnvoyService) Approve(ctx context.Context, presenterID, staffID string) error {
	if _, err := s.presenters.FindByID(ctx, presenterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "envoy registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load envoy registration")
	}

	done, err := s.presenters.Approve(ctx, presenterID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve envoy")
	}
	if !done {
		return appErrors.Clone(appErrors.ErrConflict, "envoy is already approved")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &staffID,
		Action:     models.AuditActionEnvoyApprove,
		Resource:   "admission_presenters",
		ResourceID: &presenterID,
	}); err != nil {
		s.logger.Warn("failed to record envoy approve audit log", zap.Error(err))
	}

	return nil
}

// Remove deletes an envoy pairing along with its attributed enrollments.
func (s *EnvoyService) Remove(ctx context.Context, presenterID string) error {
	if _, err := s.presenters.FindByID(ctx, presenterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "envoy registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load envoy registration")
	}
	if err := s.presenters.Delete(ctx, presenterID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove envoy")
	}
	return nil
}

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf), nil
}

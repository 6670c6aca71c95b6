package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admission-api/internal/models"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
	"github.com/noah-isme/uni-admission-api/pkg/export"
)

// ExportFormat selects the roster export rendering.
type ExportFormat string

// Supported export formats.
const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type studentRepository interface {
	ListByAdmission(ctx context.Context, admissionID string) ([]models.StudentDetail, error)
	ExistsInAdmission(ctx context.Context, studentID, admissionID string) (bool, error)
	Create(ctx context.Context, enrollment *models.StudentPresenter) error
	Find(ctx context.Context, studentID, presenterID string) (*models.StudentPresenter, error)
	MarkPaid(ctx context.Context, studentID, presenterID string, paidAt time.Time) (bool, error)
	CountByPresenter(ctx context.Context, presenterID string) (total int, paid int, err error)
}

type rosterPresenterRepository interface {
	FindByID(ctx context.Context, id string) (*models.AdmissionPresenter, error)
	FindByReferralCode(ctx context.Context, code string) (*models.AdmissionPresenter, error)
}

type rosterAdmissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Admission, error)
}

// RosterService manages student enrollments and their exports.
type RosterService struct {
	students   studentRepository
	presenters rosterPresenterRepository
	admissions rosterAdmissionRepository
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(students studentRepository, presenters rosterPresenterRepository, admissions rosterAdmissionRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RosterService{
		students:   students,
		presenters: presenters,
		admissions: admissions,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// StudentsOf lists the students attributed to a campaign through its envoys.
func (s *RosterService) StudentsOf(ctx context.Context, admissionID string) ([]models.StudentDetail, error) {
	if _, err := s.admissions.FindByID(ctx, admissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	students, err := s.students.ListByAdmission(ctx, admissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Apply enrolls a student through a shared referral link. The same student
// may not enroll twice within one campaign, regardless of which envoy
// referred them; the pairwise key backs the check under concurrency.
func (s *RosterService) Apply(ctx context.Context, req models.ApplyRequest) (*models.StudentPresenter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	presenter, err := s.presenters.FindByReferralCode(ctx, req.ReferralCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "referral code is not valid")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve referral code")
	}

	admission, err := s.admissions.FindByID(ctx, presenter.AdmissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	if admission.Finished || admission.EndDate.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission is no longer accepting applications")
	}

	enrolled, err := s.students.ExistsInAdmission(ctx, req.StudentID, presenter.AdmissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this admission")
	}

	enrollment := &models.StudentPresenter{
		StudentID:   req.StudentID,
		PresenterID: presenter.ID,
	}
	if err := s.students.Create(ctx, enrollment); err != nil {
		if isUniqueViolation(err, "student_presenters_pkey") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this admission")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.metrics.RecordStudentApplication()
	return enrollment, nil
}

// MarkPaid stamps payment on an enrollment. The stamp is written once; a
// repeat reports a conflict.
func (s *RosterService) MarkPaid(ctx context.Context, studentID, presenterID string) error {
	if _, err := s.students.Find(ctx, studentID, presenterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	done, err := s.students.MarkPaid(ctx, studentID, presenterID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark enrollment paid")
	}
	if !done {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is already marked paid")
	}
	return nil
}

// RewardSummary aggregates an envoy's referral outcome for a campaign.
type RewardSummary struct {
	PresenterID string `json:"presenter_id"`
	Total       int    `json:"total"`
	Paid        int    `json:"paid"`
	Reward      int    `json:"reward"`
}

// Rewards computes the reward owed to an envoy: paid referrals times the
// campaign's per-referral amount.
func (s *RosterService) Rewards(ctx context.Context, presenterID string) (*RewardSummary, error) {
	presenter, err := s.presenters.FindByID(ctx, presenterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "envoy registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load envoy registration")
	}

	admission, err := s.admissions.FindByID(ctx, presenter.AdmissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	total, paid, err := s.students.CountByPresenter(ctx, presenterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count referrals")
	}

	return &RewardSummary{
		PresenterID: presenterID,
		Total:       total,
		Paid:        paid,
		Reward:      paid * admission.Rose,
	}, nil
}

// Export renders the campaign roster in the requested format and returns the
// bytes with a matching content type.
func (s *RosterService) Export(ctx context.Context, admissionID string, format ExportFormat) ([]byte, string, error) {
	admission, err := s.admissions.FindByID(ctx, admissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	students, err := s.students.ListByAdmission(ctx, admissionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	dataset := export.Dataset{
		Headers: []string{"Student ID", "Referral Code", "Envoy", "Joined", "Paid"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, student := range students {
		paid := ""
		if student.StudentPaidTime != nil {
			paid = student.StudentPaidTime.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":    student.StudentID,
			"Referral Code": student.ReferralCode,
			"Envoy":         student.EnvoyName,
			"Joined":        student.StudentJoinedTime.Format(time.RFC3339),
			"Paid":          paid,
		})
	}

	switch format {
	case ExportCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case ExportPDF:
		payload, err := s.pdf.Render(dataset, admission.Name)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

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
)

const (
	cacheKeyAvailable = "catalog:available"
	cacheKeyRunning   = "catalog:running"
	cacheKeyFinished  = "catalog:finished"
	cachePatternAll   = "catalog:*"
)

type admissionRepository interface {
	ListAvailable(ctx context.Context, now time.Time) ([]models.AdmissionDetail, error)
	ListFinished(ctx context.Context) ([]models.AdmissionDetail, error)
	ListRunning(ctx context.Context) ([]models.AdmissionDetail, error)
	FindByID(ctx context.Context, id string) (*models.Admission, error)
	Create(ctx context.Context, admission *models.Admission) error
	Update(ctx context.Context, admission *models.Admission) error
	Finish(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListTypes(ctx context.Context) ([]models.AdmissionType, error)
	FindTypeByID(ctx context.Context, id string) (*models.AdmissionType, error)
	CreateType(ctx context.Context, t *models.AdmissionType) error
}

// AdmissionService manages campaign lifecycle and the campaign catalog.
type AdmissionService struct {
	repo      admissionRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(repo admissionRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// ListAvailable returns campaigns currently open for envoy registration.
func (s *AdmissionService) ListAvailable(ctx context.Context) ([]models.AdmissionDetail, error) {
	var cached []models.AdmissionDetail
	if hit, _ := s.cache.Get(ctx, cacheKeyAvailable, &cached); hit {
		return cached, nil
	}

	admissions, err := s.repo.ListAvailable(ctx, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available admissions")
	}

	if err := s.cache.Set(ctx, cacheKeyAvailable, admissions, 0); err != nil {
		s.logger.Warn("failed to cache available admissions", zap.Error(err))
	}
	return admissions, nil
}

// ListFinished returns closed campaigns.
func (s *AdmissionService) ListFinished(ctx context.Context) ([]models.AdmissionDetail, error) {
	var cached []models.AdmissionDetail
	if hit, _ := s.cache.Get(ctx, cacheKeyFinished, &cached); hit {
		return cached, nil
	}

	admissions, err := s.repo.ListFinished(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list finished admissions")
	}

	if err := s.cache.Set(ctx, cacheKeyFinished, admissions, 0); err != nil {
		s.logger.Warn("failed to cache finished admissions", zap.Error(err))
	}
	return admissions, nil
}

// ListRunning returns campaigns not yet closed, including those past their
// end date that still await reward settlement.
func (s *AdmissionService) ListRunning(ctx context.Context) ([]models.AdmissionDetail, error) {
	var cached []models.AdmissionDetail
	if hit, _ := s.cache.Get(ctx, cacheKeyRunning, &cached); hit {
		return cached, nil
	}

	admissions, err := s.repo.ListRunning(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list running admissions")
	}

	if err := s.cache.Set(ctx, cacheKeyRunning, admissions, 0); err != nil {
		s.logger.Warn("failed to cache running admissions", zap.Error(err))
	}
	return admissions, nil
}

// Get returns a single campaign.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Admission, error) {
	admission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return admission, nil
}

// Create opens a new campaign.
func (s *AdmissionService) Create(ctx context.Context, req models.CreateAdmissionRequest) (*models.Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	if _, err := s.repo.FindTypeByID(ctx, req.TypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "admission type does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve admission type")
	}

	admission := &models.Admission{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Rose:        req.Rose,
		TypeID:      req.TypeID,
	}

	if err := s.repo.Create(ctx, admission); err != nil {
		if isUniqueViolation(err, "admissions_name_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an admission with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission")
	}

	s.invalidateCatalog(ctx)
	return admission, nil
}

// Update edits a campaign. Closed campaigns are immutable.
func (s *AdmissionService) Update(ctx context.Context, id string, req models.UpdateAdmissionRequest) (*models.Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	admission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if admission.Finished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission is already finished")
	}

	admission.Name = req.Name
	admission.Description = req.Description
	admission.StartDate = req.StartDate
	admission.EndDate = req.EndDate
	admission.Rose = req.Rose

	if err := s.repo.Update(ctx, admission); err != nil {
		if isUniqueViolation(err, "admissions_name_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an admission with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission")
	}

	s.invalidateCatalog(ctx)
	return admission, nil
}

// Finish closes a campaign. The transition happens at most once; a second
// request reports a conflict.
func (s *AdmissionService) Finish(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	done, err := s.repo.Finish(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish admission")
	}
	if !done {
		return appErrors.Clone(appErrors.ErrConflict, "admission is already finished")
	}

	s.invalidateCatalog(ctx)
	return nil
}

// Delete removes a campaign. Campaigns with enrolled envoys are protected by
// the database and reported as a conflict.
func (s *AdmissionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "admission has enrolled envoys and cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete admission")
	}

	s.invalidateCatalog(ctx)
	return nil
}

// ListTypes returns the campaign categories.
func (s *AdmissionService) ListTypes(ctx context.Context) ([]models.AdmissionType, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admission types")
	}
	return types, nil
}

// CreateType adds a campaign category.
func (s *AdmissionService) CreateType(ctx context.Context, name string) (*models.AdmissionType, error) {
	if name == "" || len(name) > models.AdmissionNameMaxLen {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type name is required and must be at most 100 characters")
	}

	t := &models.AdmissionType{Name: name}
	if err := s.repo.CreateType(ctx, t); err != nil {
		if isUniqueViolation(err, "admission_types_name_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an admission type with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission type")
	}
	return t, nil
}

func (s *AdmissionService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePatternAll); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admission-api/internal/models"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
)

type enrollmentKey struct {
	studentID   string
	presenterID string
}

type mockStudentRepo struct {
	enrollments map[enrollmentKey]*models.StudentPresenter
	presenters  *mockPresenterRepo
}

func newMockStudentRepo(presenters *mockPresenterRepo) *mockStudentRepo {
	return &mockStudentRepo{
		enrollments: make(map[enrollmentKey]*models.StudentPresenter),
		presenters:  presenters,
	}
}

func (m *mockStudentRepo) ListByAdmission(ctx context.Context, admissionID string) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, e := range m.enrollments {
		p, ok := m.presenters.presenters[e.PresenterID]
		if !ok || p.AdmissionID != admissionID {
			continue
		}
		out = append(out, models.StudentDetail{StudentPresenter: *e, ReferralCode: p.ReferralCode, EnvoyName: "Envoy"})
	}
	return out, nil
}

func (m *mockStudentRepo) ExistsInAdmission(ctx context.Context, studentID, admissionID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID != studentID {
			continue
		}
		if p, ok := m.presenters.presenters[e.PresenterID]; ok && p.AdmissionID == admissionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, enrollment *models.StudentPresenter) error {
	if enrollment.StudentJoinedTime.IsZero() {
		enrollment.StudentJoinedTime = time.Now().UTC()
	}
	m.enrollments[enrollmentKey{enrollment.StudentID, enrollment.PresenterID}] = enrollment
	return nil
}

func (m *mockStudentRepo) Find(ctx context.Context, studentID, presenterID string) (*models.StudentPresenter, error) {
	if e, ok := m.enrollments[enrollmentKey{studentID, presenterID}]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) MarkPaid(ctx context.Context, studentID, presenterID string, paidAt time.Time) (bool, error) {
	e, ok := m.enrollments[enrollmentKey{studentID, presenterID}]
	if !ok || e.StudentPaidTime != nil {
		return false, nil
	}
	e.StudentPaidTime = &paidAt
	return true, nil
}

func (m *mockStudentRepo) CountByPresenter(ctx context.Context, presenterID string) (int, int, error) {
	total, paid := 0, 0
	for _, e := range m.enrollments {
		if e.PresenterID != presenterID {
			continue
		}
		total++
		if e.StudentPaidTime != nil {
			paid++
		}
	}
	return total, paid, nil
}

func rosterFixture() (*RosterService, *mockStudentRepo, *mockPresenterRepo) {
	presenters := newMockPresenterRepo()
	presenters.presenters["p1"] = &models.AdmissionPresenter{ID: "p1", ReferralCode: "CODE12345678", UserID: "u1", AdmissionID: "a1"}
	presenters.presenters["p2"] = &models.AdmissionPresenter{ID: "p2", ReferralCode: "OTHER7654321", UserID: "u2", AdmissionID: "a1"}
	students := newMockStudentRepo(presenters)
	admissions := openAdmissionRepo()
	admissions.admissions["a1"].Rose = 25
	svc := NewRosterService(students, presenters, admissions, nil, validator.New(), zap.NewNop())
	return svc, students, presenters
}

func TestStudentsOfCampaignWithoutEnvoys(t *testing.T) {
	presenters := newMockPresenterRepo()
	students := newMockStudentRepo(presenters)
	svc := NewRosterService(students, presenters, openAdmissionRepo(), nil, validator.New(), zap.NewNop())

	roster, err := svc.StudentsOf(context.Background(), "a1")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRosterApply(t *testing.T) {
	svc, students, _ := rosterFixture()

	enrollment, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.NoError(t, err)
	assert.Equal(t, "p1", enrollment.PresenterID)
	assert.False(t, enrollment.StudentJoinedTime.IsZero())
	assert.Len(t, students.enrollments, 1)
}

func TestRosterApplyUnknownCode(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "BOGUS", StudentID: "S2026001"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterApplyTwiceSameAdmissionConflicts(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.NoError(t, err)

	// Different envoy, same campaign: still rejected.
	_, err = svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "OTHER7654321", StudentID: "S2026001"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterApplyClosedAdmission(t *testing.T) {
	presenters := newMockPresenterRepo()
	presenters.presenters["p1"] = &models.AdmissionPresenter{ID: "p1", ReferralCode: "CODE12345678", UserID: "u1", AdmissionID: "past"}
	students := newMockStudentRepo(presenters)
	svc := NewRosterService(students, presenters, openAdmissionRepo(), nil, validator.New(), zap.NewNop())

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterMarkPaidOnce(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaid(context.Background(), "S2026001", "p1"))

	err = svc.MarkPaid(context.Background(), "S2026001", "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterRewards(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026002"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), "S2026001", "p1"))

	summary, err := svc.Rewards(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Paid)
	assert.Equal(t, 25, summary.Reward)
}

func TestRosterExportCSV(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, err := svc.Apply(context.Background(), models.ApplyRequest{ReferralCode: "CODE12345678", StudentID: "S2026001"})
	require.NoError(t, err)

	payload, contentType, err := svc.Export(context.Background(), "a1", ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.Contains(body, "Student ID"))
	assert.True(t, strings.Contains(body, "S2026001"))
}

func TestRosterExportPDF(t *testing.T) {
	svc, _, _ := rosterFixture()

	payload, contentType, err := svc.Export(context.Background(), "a1", ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestRosterExportUnknownFormat(t *testing.T) {
	svc, _, _ := rosterFixture()

	_, _, err := svc.Export(context.Background(), "a1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

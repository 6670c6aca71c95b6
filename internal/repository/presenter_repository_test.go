package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

func TestIsRegisteredBy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM admission_presenters WHERE admission_id = $1 AND user_id = $2 LIMIT 1")).
		WithArgs("a1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	registered, err := repo.IsRegisteredBy(context.Background(), "a1", "u1")
	require.NoError(t, err)
	assert.True(t, registered)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM admission_presenters WHERE admission_id = $1 AND user_id = $2 LIMIT 1")).
		WithArgs("a1", "u2").
		WillReturnError(sql.ErrNoRows)

	registered, err = repo.IsRegisteredBy(context.Background(), "a1", "u2")
	require.NoError(t, err)
	assert.False(t, registered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePresenterGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	mock.ExpectExec("INSERT INTO admission_presenters").WillReturnResult(sqlmock.NewResult(1, 1))

	presenter := &models.AdmissionPresenter{ReferralCode: "CODE12345678", UserID: "u1", AdmissionID: "a1"}
	err := repo.Create(context.Background(), presenter)
	require.NoError(t, err)
	assert.NotEmpty(t, presenter.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReferralCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "referral_code", "user_id", "admission_id", "user_joined_time"}).
		AddRow("p1", "CODE12345678", "u1", "a1", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE referral_code = $1")).
		WithArgs("CODE12345678").
		WillReturnRows(rows)

	presenter, err := repo.FindByReferralCode(context.Background(), "CODE12345678")
	require.NoError(t, err)
	assert.Equal(t, "a1", presenter.AdmissionID)
	assert.False(t, presenter.Approved())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByAdmissionAndUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "referral_code", "user_id", "admission_id", "user_joined_time"}).
		AddRow("p1", "CODE12345678", "u1", "a1", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE admission_id = $1 AND user_id = $2")).
		WithArgs("a1", "u1").
		WillReturnRows(rows)

	presenter, err := repo.FindByAdmissionAndUser(context.Background(), "a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", presenter.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, referral_code, user_id, admission_id, user_joined_time FROM admission_presenters WHERE admission_id = $1 AND user_id = $2")).
		WithArgs("a1", "u2").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByAdmissionAndUser(context.Background(), "a1", "u2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePresenter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admission_presenters WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveStampsOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	approvedAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE admission_presenters SET user_joined_time = $2 WHERE id = $1 AND user_joined_time IS NULL")).
		WithArgs("p1", approvedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := repo.Approve(context.Background(), "p1", approvedAt)
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admission_presenters SET user_joined_time = $2 WHERE id = $1 AND user_joined_time IS NULL")).
		WithArgs("p1", approvedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	done, err = repo.Approve(context.Background(), "p1", approvedAt)
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAdmissionEnvoys(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPresenterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "referral_code", "user_id", "admission_id", "user_joined_time", "envoy_name", "envoy_email"}).
		AddRow("p1", "CODE12345678", "u1", "a1", time.Now(), "Envoy", "envoy@example.com")
	mock.ExpectQuery("FROM admission_presenters p\\s+JOIN users u ON u.id = p.user_id").
		WithArgs("a1").
		WillReturnRows(rows)

	presenters, err := repo.ListByAdmission(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, presenters, 1)
	assert.Equal(t, "Envoy", presenters[0].EnvoyName)
	assert.True(t, presenters[0].Approved())
	assert.NoError(t, mock.ExpectationsWereMet())
}

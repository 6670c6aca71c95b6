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

func TestListByAdmissionStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"student_id", "presenter_id", "student_joined_time", "student_paid_time", "referral_code", "envoy_name"}).
		AddRow("S2026001", "p1", now, nil, "CODE12345678", "Envoy")
	mock.ExpectQuery("FROM student_presenters s\\s+LEFT JOIN admission_presenters p ON p.id = s.presenter_id").
		WithArgs("a1").
		WillReturnRows(rows)

	students, err := repo.ListByAdmission(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S2026001", students[0].StudentID)
	assert.False(t, students[0].Paid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAdmissionStudentsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	// A campaign with no envoys (or no referrals yet) yields an empty roster,
	// not an error.
	rows := sqlmock.NewRows([]string{"student_id", "presenter_id", "student_joined_time", "student_paid_time", "referral_code", "envoy_name"})
	mock.ExpectQuery("FROM student_presenters s\\s+LEFT JOIN admission_presenters p ON p.id = s.presenter_id").
		WithArgs("a2").
		WillReturnRows(rows)

	students, err := repo.ListByAdmission(context.Background(), "a2")
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsInAdmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM student_presenters s\\s+JOIN admission_presenters p ON p.id = s.presenter_id").
		WithArgs("S2026001", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsInAdmission(context.Background(), "S2026001", "a1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM student_presenters s\\s+JOIN admission_presenters p ON p.id = s.presenter_id").
		WithArgs("S2026002", "a1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsInAdmission(context.Background(), "S2026002", "a1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnrollmentStampsJoinTime(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO student_presenters").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.StudentPresenter{StudentID: "S2026001", PresenterID: "p1"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.False(t, enrollment.StudentJoinedTime.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidAppendOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	paidAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_presenters SET student_paid_time = $3")).
		WithArgs("S2026001", "p1", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := repo.MarkPaid(context.Background(), "S2026001", "p1", paidAt)
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_presenters SET student_paid_time = $3")).
		WithArgs("S2026001", "p1", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	done, err = repo.MarkPaid(context.Background(), "S2026001", "p1", paidAt)
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByPresenter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(student_paid_time) FROM student_presenters WHERE presenter_id = $1")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "count"}).AddRow(7, 3))

	total, paid, err := repo.CountByPresenter(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, 3, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

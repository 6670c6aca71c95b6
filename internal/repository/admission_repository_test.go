package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admission-api/internal/models"
)

func admissionDetailRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "start_date", "end_date", "finished", "rose", "type_id", "created_at", "updated_at", "type_name"}).
		AddRow("a1", "Fall Intake", "", now, now.AddDate(0, 1, 0), false, 10, "t1", now, now, "Bachelor")
}

func TestListAvailable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM admissions a\\s+JOIN admission_types t ON t.id = a.type_id\\s+WHERE a.finished = FALSE AND a.end_date >= \\$1").
		WithArgs(now).
		WillReturnRows(admissionDetailRows(now))

	admissions, err := repo.ListAvailable(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, admissions, 1)
	assert.Equal(t, "Fall Intake", admissions[0].Name)
	assert.Equal(t, "Bachelor", admissions[0].TypeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFinished(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "start_date", "end_date", "finished", "rose", "type_id", "created_at", "updated_at", "type_name"}).
		AddRow("a2", "Spring Intake", "", now, now, true, 5, "t1", now, now, "Bachelor")
	mock.ExpectQuery("WHERE a.finished = TRUE").WillReturnRows(rows)

	admissions, err := repo.ListFinished(context.Background())
	require.NoError(t, err)
	require.Len(t, admissions, 1)
	assert.True(t, admissions[0].Finished)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdmissionGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec("INSERT INTO admissions").WillReturnResult(sqlmock.NewResult(1, 1))

	admission := &models.Admission{Name: "Fall Intake", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 1, 0), TypeID: "t1"}
	err := repo.Create(context.Background(), admission)
	require.NoError(t, err)
	assert.NotEmpty(t, admission.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishIsOneWay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admissions SET finished = TRUE, updated_at = $2 WHERE id = $1 AND finished = FALSE")).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := repo.Finish(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admissions SET finished = TRUE, updated_at = $2 WHERE id = $1 AND finished = FALSE")).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	done, err = repo.Finish(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTypeNameExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM admission_types WHERE name = $1 LIMIT 1")).
		WithArgs("Bachelor").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.TypeNameExists(context.Background(), "Bachelor")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

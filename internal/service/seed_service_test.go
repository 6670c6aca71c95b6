package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSeedMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	return db, mock, func() { _ = db.Close() }
}

func expectExistingRow(mock sqlmock.Sqlmock, query string, times int) {
	for i := 0; i < times; i++ {
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	}
}

func TestSeedRunSecondBootInsertsNothing(t *testing.T) {
	db, mock, cleanup := newSeedMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectExistingRow(mock, `SELECT 1 FROM roles WHERE code = \$1`, 3)
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectExistingRow(mock, `SELECT 1 FROM users WHERE email = \$1`, 1)
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectExistingRow(mock, `SELECT 1 FROM users WHERE email = \$1`, 3)
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectExistingRow(mock, `SELECT 1 FROM admission_types WHERE name = \$1`, 4)
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectExistingRow(mock, `SELECT 1 FROM envoy_types WHERE name = \$1`, 4)
	mock.ExpectCommit()

	svc := NewSeedService(db, SeedConfig{}, zap.NewNop())
	err := svc.Run(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRunPropagatesCheckFailure(t *testing.T) {
	db, mock, cleanup := newSeedMock(t)
	defer cleanup()

	// A broken connection during the existence check must surface, not fall
	// through to an INSERT.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM roles WHERE code = \$1`).
		WithArgs("admin").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	svc := NewSeedService(db, SeedConfig{}, zap.NewNop())
	err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRolesInsertsMissing(t *testing.T) {
	db, mock, cleanup := newSeedMock(t)
	defer cleanup()

	mock.ExpectBegin()
	for _, code := range []string{"admin", "manager", "envoy"} {
		mock.ExpectQuery(`SELECT 1 FROM roles WHERE code = \$1`).
			WithArgs(code).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO roles \(name, code\) VALUES \(\$1, \$2\)`).
			WithArgs(sqlmock.AnyArg(), code).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	svc := NewSeedService(db, SeedConfig{}, zap.NewNop())

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, svc.seedRoles(context.Background(), tx))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewClientFromDB(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestNewClientRequiresDSN(t *testing.T) {
	_, err := NewClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")
}

func TestMigrateAppliesInOrder(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS prices")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS reports")).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := c.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/0001_prices.sql", "migrations/0002_reports.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	applied, err := c.Migrate(context.Background())
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.Contains(t, err.Error(), "0001_prices.sql")
}

func TestHealth(t *testing.T) {
	c, mock := newMock(t)

	mock.ExpectPing()
	assert.NoError(t, c.Health(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, c.Health(context.Background()))
}

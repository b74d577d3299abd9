package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var (
	ts      = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	columns = []string{"id", "user_id", "family_id", "token", "refresh_token", "status", "created_at", "expires_at",
		"revoked_at", "last_used_at", "user_agent", "ip_address", "timeout_minutes",
		"refresh_token_expires_at", "last_refresh_at", "replaced_by"}
)

func TestCreate_PassesAllColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	timeout := 30
	s := &models.Session{
		ID: "s-1", UserID: "u-1", FamilyID: "s-1", TokenHash: "th", RefreshTokenHash: "rh",
		Status: models.SessionActive, CreatedAt: ts, ExpiresAt: ts.Add(15 * time.Minute),
		UserAgent: "curl", IPAddress: "10.0.0.1", TimeoutMinutes: &timeout,
		RefreshTokenExpiresAt: ts.Add(24 * time.Hour),
	}

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+sessions\s*\(id,\s*user_id,\s*family_id,.*\)\s*VALUES\s*\(\$1,.*\$12\)\s*$`).
		WithArgs("s-1", "u-1", "s-1", "th", "rh", "active", ts, ts.Add(15*time.Minute), "curl", "10.0.0.1",
			sql.NullInt32{Int32: 30, Valid: true}, ts.Add(24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByRefreshTokenHash_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).AddRow("s-1", "u-1", "s-1", "th", "rh", "revoked", ts, ts.Add(time.Minute),
		ts, nil, "curl", "10.0.0.1", nil, ts.Add(time.Hour), ts, "s-2")
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*\s+FROM\s+sessions\s+WHERE\s+refresh_token\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("rh").
		WillReturnRows(rows)

	s, err := repo.GetByRefreshTokenHash(context.Background(), "rh")
	require.NoError(t, err)
	assert.Equal(t, models.SessionRevoked, s.Status)
	require.NotNil(t, s.ReplacedBy)
	assert.Equal(t, "s-2", *s.ReplacedBy)
	assert.Nil(t, s.TimeoutMinutes)
	assert.Nil(t, s.LastUsedAt)
	require.NotNil(t, s.LastRefreshAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByTokenHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*\s+FROM\s+sessions\s+WHERE\s+token\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByTokenHash(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListActiveByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("s-1", "u-1", "s-1", "a", "b", "active", ts, ts, nil, nil, nil, nil, 15, ts, nil, nil).
		AddRow("s-2", "u-1", "s-2", "c", "d", "active", ts, ts, nil, ts, "ua", "ip", nil, ts, nil, nil)
	mock.ExpectQuery(`(?s)^SELECT\s+.*\s+FROM\s+sessions\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'\s+ORDER\s+BY\s+created_at$`).
		WithArgs("u-1").
		WillReturnRows(rows)

	list, err := repo.ListActiveByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].TimeoutMinutes)
	assert.Equal(t, 15, *list[0].TimeoutMinutes)
	assert.Equal(t, "", list[0].UserAgent)
	assert.Equal(t, "ua", list[1].UserAgent)
}

func TestRevoke_ReportsWhetherRowChanged(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+sessions\s+SET\s+status\s*=\s*'revoked',\s*revoked_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'$`
	mock.ExpectExec(q).WithArgs("s-1", ts).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("s-1", ts).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Revoke(context.Background(), "s-1", ts)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Revoke(context.Background(), "s-1", ts)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMarkRotated_NotActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+sessions\s+SET\s+status\s*=\s*'revoked',.*replaced_by\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'\s*$`).
		WithArgs("s-1", "s-2", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRotated(context.Background(), "s-1", "s-2", ts)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRevokeFamily_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+status\s*=\s*'revoked',\s*revoked_at\s*=\s*\$2\s+WHERE\s+family_id\s*=\s*\$1`).
		WithArgs("f-1", ts).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeFamily(context.Background(), "f-1", ts)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestExpireStale_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+status\s*=\s*'expired'.*make_interval`).
		WithArgs(ts).
		WillReturnError(errors.New("boom"))

	_, err := repo.ExpireStale(context.Background(), ts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

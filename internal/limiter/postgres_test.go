package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{Window: 5 * time.Minute, MaxFails: 5, BlockFor: 10 * time.Minute}

func newPG(t *testing.T) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewPG(mock, testPolicy)
	l.now = func() time.Time { return now }
	return l, mock, now
}

const selBlocked = `SELECT blocked_until FROM login_attempts WHERE email=\$1 AND ip_hash=\$2`

func TestPG_Allow(t *testing.T) {
	t.Parallel()
	l, mock, now := newPG(t)
	ctx := context.Background()
	ip := HashIP("1.2.3.4")

	mock.ExpectQuery(selBlocked).WithArgs("a@b.c", ip).WillReturnError(pgx.ErrNoRows)
	ok, dur, err := l.Allow(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dur)

	mock.ExpectQuery(selBlocked).WithArgs("a@b.c", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(10 * time.Minute)))
	ok, dur, err = l.Allow(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, dur)

	mock.ExpectQuery(selBlocked).WithArgs("a@b.c", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Minute)))
	ok, _, err = l.Allow(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(selBlocked).WithArgs("a@b.c", ip).WillReturnError(errors.New("db boom"))
	ok, _, err = l.Allow(ctx, "a@b.c", ip)
	require.Error(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Success(t *testing.T) {
	t.Parallel()
	l, mock, _ := newPG(t)
	ip := HashIP("1.2.3.4")

	mock.ExpectExec(`INSERT INTO login_attempts`).WithArgs("a@b.c", ip).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), "a@b.c", ip))

	mock.ExpectExec(`INSERT INTO login_attempts`).WithArgs("a@b.c", ip).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), "a@b.c", ip))
}

func TestPG_Failure(t *testing.T) {
	t.Parallel()
	l, mock, now := newPG(t)
	ctx := context.Background()
	ip := HashIP("1.2.3.4")

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs("a@b.c", ip, testPolicy.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, dur, err := l.Failure(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs("a@b.c", ip, testPolicy.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(5))
	mock.ExpectExec(`UPDATE login_attempts SET blocked_until=\$3 WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@b.c", ip, now.Add(testPolicy.BlockFor)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, dur, err = l.Failure(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, testPolicy.BlockFor, dur)

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs("a@b.c", ip, testPolicy.Window).
		WillReturnError(errors.New("query error"))
	_, _, err = l.Failure(ctx, "a@b.c", ip)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHashIP_Determinism(t *testing.T) {
	t.Parallel()
	a := HashIP("1.2.3.4:123")
	require.Equal(t, a, HashIP("1.2.3.4:123"))
	require.NotEqual(t, a, HashIP("5.6.7.8:321"))
	require.Len(t, a, 32)
}

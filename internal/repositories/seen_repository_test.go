package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeenMock(t *testing.T) (*SeenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSeenRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func expectMarkSeen(mock sqlmock.Sqlmock, inserted int64, at time.Time) {
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO message_views \(message_id, user_id, created_at\)(?s).*ON CONFLICT \(message_id, user_id\) DO NOTHING`).
		WithArgs(int64(7), int64(2), at).
		WillReturnResult(sqlmock.NewResult(0, inserted))
	mock.ExpectExec(`UPDATE conversation_members SET last_seen_at=\$3`).
		WithArgs(int64(7), int64(2), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

// The second identical call inserts nothing thanks to the conflict guard and
// still succeeds.
func TestMarkSeenRedundantCallIsNoOp(t *testing.T) {
	repo, mock := newSeenMock(t)
	at := time.Now().UTC()

	expectMarkSeen(mock, 3, at)
	expectMarkSeen(mock, 0, at)

	require.NoError(t, repo.MarkSeen(context.Background(), 7, 2, at))
	require.NoError(t, repo.MarkSeen(context.Background(), 7, 2, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

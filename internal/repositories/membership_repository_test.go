package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conversationLockQuery = `SELECT id FROM conversations WHERE id=\$1 AND deleted_at IS NULL FOR UPDATE`

func newMembershipMock(t *testing.T) (*MembershipRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func lockRow(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"}).AddRow(id)
}

func TestSetAdminTakesConversationLock(t *testing.T) {
	repo, mock := newMembershipMock(t)

	// expectations are ordered: the lock must precede the flag update
	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnRows(lockRow(7))
	mock.ExpectExec(`UPDATE conversation_members SET is_admin=\$3`).
		WithArgs(int64(7), int64(3), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetAdmin(context.Background(), 7, 3, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAdminNotMemberRollsBack(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnRows(lockRow(7))
	mock.ExpectExec(`UPDATE conversation_members SET is_admin=\$3`).
		WithArgs(int64(7), int64(99), true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetAdmin(context.Background(), 7, 99, true)
	assert.ErrorIs(t, err, ErrNotMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAdminDeletedConversation(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.SetAdmin(context.Background(), 7, 3, true)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTakesConversationLock(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnRows(lockRow(7))
	mock.ExpectExec(`INSERT INTO conversation_members`).
		WithArgs(int64(7), int64(9), false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Add(context.Background(), 7, 9, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAlreadyMemberRollsBack(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnRows(lockRow(7))
	mock.ExpectExec(`INSERT INTO conversation_members`).
		WithArgs(int64(7), int64(9), false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Add(context.Background(), 7, 9, false)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The promotion plan is computed from a roster read inside the same locked
// transaction that performs the removal, never from an earlier snapshot.
func TestRemovePlansFromLockedRoster(t *testing.T) {
	repo, mock := newMembershipMock(t)
	joined := time.Now().Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(conversationLockQuery).WithArgs(int64(7)).WillReturnRows(lockRow(7))
	mock.ExpectQuery(`FROM conversation_members WHERE conversation_id=\$1 ORDER BY joined_at, user_id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "user_id", "is_admin", "is_archived", "last_seen_at", "joined_at"}).
			AddRow(7, 1, true, false, nil, joined).
			AddRow(7, 2, false, false, nil, joined.Add(time.Minute)).
			AddRow(7, 3, false, false, nil, joined.Add(2*time.Minute)))
	mock.ExpectExec(`UPDATE conversation_members SET is_admin=TRUE`).
		WithArgs(int64(7), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM conversation_members`).
		WithArgs(int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Remove(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.False(t, res.Dissolved)
	assert.Equal(t, int64(2), res.PromotedUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ErrInvalidToken is returned when a bearer token resolves to no active user.
var ErrInvalidToken = errors.New("invalid token")

// UserRepository reads the shared user directory. The messaging core never
// writes users; they are owned by the surrounding application.
type UserRepository interface {
	Get(ctx context.Context, userID int64) (models.User, error)
	ByIDs(ctx context.Context, userIDs []int64) (map[int64]models.User, error)
	GetByToken(ctx context.Context, token string) (models.User, error)
	Search(ctx context.Context, excludeUserID int64, query string, limit int) ([]models.User, error)
}

// UserRepo is the sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, email, active, created_at`

// Get fetches one user.
func (r *UserRepo) Get(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// ByIDs fetches a batch of users keyed by id.
func (r *UserRepo) ByIDs(ctx context.Context, userIDs []int64) (map[int64]models.User, error) {
	result := make(map[int64]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// GetByToken resolves a bearer token to its active user.
func (r *UserRepo) GetByToken(ctx context.Context, token string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT u.id, u.name, u.email, u.active, u.created_at
        FROM users u JOIN api_tokens t ON t.user_id = u.id
        WHERE t.token=$1 AND u.active=TRUE`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidToken
	}
	return u, err
}

// Search matches active users by name or email, excluding the caller.
func (r *UserRepo) Search(ctx context.Context, excludeUserID int64, query string, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE active=TRUE AND id<>$1
          AND (name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
        ORDER BY name LIMIT $3`, excludeUserID, query, limit)
	return users, err
}

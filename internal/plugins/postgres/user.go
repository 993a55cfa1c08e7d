package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	user := &domain.User{ID: id}
	query := `SELECT is_online, last_seen, created_at FROM users WHERE id = $1`
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, id).Scan(&user.IsOnline, &user.LastSeen, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateVisibility stores the user controlled online flag. Users are owned
// by the account service, so an unknown id is reported, not created.
func (r *UserRepo) UpdateVisibility(
	ctx context.Context,
	id string,
	online bool,
	lastSeen time.Time,
) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	user := &domain.User{ID: id}
	query := `
		UPDATE users
		SET is_online = $2, last_seen = $3
		WHERE id = $1
		RETURNING is_online, last_seen, created_at`
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, id, online, lastSeen).
		Scan(&user.IsOnline, &user.LastSeen, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

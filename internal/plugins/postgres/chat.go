package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// EnsureChat returns the thread for the pair, inserting it on first use.
// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
func (r *ChatRepo) EnsureChat(ctx context.Context, a, b string) (*domain.Chat, error) {
	if a == "" || b == "" {
		return nil, domain.ErrInvalidUserID
	}
	userA, userB := domain.ChatPair(a, b)
	chat := &domain.Chat{}
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		INSERT INTO chats (id, user_a, user_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_a, user_b) DO UPDATE SET user_a = EXCLUDED.user_a
		RETURNING id, user_a, user_b, last_message_id, updated_at
	`, uuid.New(), userA, userB).Scan(
		&chat.ID,
		&chat.UserA,
		&chat.UserB,
		&chat.LastMessageID,
		&chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *ChatRepo) TouchLastMessage(ctx context.Context, chat *domain.Chat, msg *domain.Message) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE chats
		SET last_message_id = $2, updated_at = $3
		WHERE id = $1
	`, chat.ID, msg.ID, msg.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrChatNotFound
	}
	chat.LastMessageID = uuid.NullUUID{UUID: msg.ID, Valid: true}
	chat.UpdatedAt = msg.CreatedAt
	return nil
}

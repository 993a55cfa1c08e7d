package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

// SaveMessage inserts msg and fills in the generated ID and CreatedAt.
func (r *MessageRepo) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ChatID == uuid.Nil {
		return domain.ErrChatNotFound
	}
	id := uuid.New()
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		INSERT INTO messages (
			id, chat_id, sender_id, receiver_id, content
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		id,
		msg.ChatID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return err
	}
	msg.ID = id
	msg.IsRead = false
	return nil
}

func (r *MessageRepo) ListMessages(
	ctx context.Context,
	a, b string,
	limit int,
) ([]domain.Message, error) {
	if a == "" || b == "" {
		return nil, domain.ErrInvalidUserID
	}
	userA, userB := domain.ChatPair(a, b)
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, receiver_id, content, is_read, created_at
		FROM (
			SELECT m.id, m.chat_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at
			FROM messages m
			JOIN chats c ON c.id = m.chat_id
			WHERE c.user_a = $1 AND c.user_b = $2
			ORDER BY m.created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`, userA, userB, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Content,
			&m.IsRead,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	if readerID == "" || peerID == "" {
		return 0, domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read
	`, readerID, peerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

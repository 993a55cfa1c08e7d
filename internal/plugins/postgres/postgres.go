package postgres

import (
	"context"
	"database/sql"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/Riyakuila/Chat-Flow/internal/config"
)

// New opens a traced pgx pool and verifies it with a ping.
func New(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := otelsql.Open("pgx", cfg.DSN,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, err
	}
	// Pool tuning
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	// Health check
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

/*
	CREATE TABLE users (
		id         TEXT PRIMARY KEY,
		is_online  BOOLEAN NOT NULL DEFAULT false,
		last_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE chats (
		id              UUID PRIMARY KEY,
		user_a          TEXT NOT NULL,
		user_b          TEXT NOT NULL,
		last_message_id UUID NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_a, user_b),
		CHECK (user_a < user_b)
	);

	CREATE TABLE messages (
		id          UUID PRIMARY KEY,
		chat_id     UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender_id   TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content     TEXT NOT NULL,
		is_read     BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX messages_chat_created_idx ON messages (chat_id, created_at DESC);
*/

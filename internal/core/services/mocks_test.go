package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Riyakuila/Chat-Flow/internal/app/registry"
	"github.com/Riyakuila/Chat-Flow/internal/core/contracts/contractstest"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
)

// --- Mocks ---

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) EnsureChat(ctx context.Context, a, b string) (*domain.Chat, error) {
	args := m.Called(ctx, a, b)
	var chat *domain.Chat
	if v, ok := args.Get(0).(*domain.Chat); ok {
		chat = v
	}
	return chat, args.Error(1)
}

func (m *mockChatRepo) TouchLastMessage(ctx context.Context, chat *domain.Chat, msg *domain.Message) error {
	args := m.Called(ctx, chat, msg)
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) SaveMessage(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepo) ListMessages(ctx context.Context, a, b string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, a, b, limit)
	var out []domain.Message
	if v, ok := args.Get(0).([]domain.Message); ok {
		out = v
	}
	return out, args.Error(1)
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	args := m.Called(ctx, readerID, peerID)
	return args.Get(0).(int64), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	var u *domain.User
	if v, ok := args.Get(0).(*domain.User); ok {
		u = v
	}
	return u, args.Error(1)
}

func (m *mockUserRepo) UpdateVisibility(ctx context.Context, id string, online bool, lastSeen time.Time) (*domain.User, error) {
	args := m.Called(ctx, id, online, lastSeen)
	var u *domain.User
	if v, ok := args.Get(0).(*domain.User); ok {
		u = v
	}
	return u, args.Error(1)
}

// passthroughTx runs fn without a database.
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

// --- Fixture ---

type fixture struct {
	reg      *registry.Registry
	chats    *mockChatRepo
	msgs     *mockMessageRepo
	users    *mockUserRepo
	tx       *passthroughTx
	messages *services.MessageService
	presence *services.PresenceService
	calls    *services.CallService
	manager  *services.ManagerService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	log := discardLogger()
	f := &fixture{
		reg:   registry.NewRegistry(),
		chats: &mockChatRepo{},
		msgs:  &mockMessageRepo{},
		users: &mockUserRepo{},
		tx:    &passthroughTx{},
	}
	f.messages = services.NewMessageService(log, f.reg, f.chats, f.msgs, f.tx)
	f.presence = services.NewPresenceService(log, f.reg, f.users)
	f.calls = services.NewCallService(log, f.reg)
	f.manager = services.NewManagerService(log, f.reg, f.messages, f.presence, f.calls)
	return f
}

// connect registers a fresh fake handle for userID.
func (f *fixture) connect(t *testing.T, userID string) *contractstest.Handle {
	t.Helper()
	h := contractstest.NewHandle()
	require.NoError(t, f.manager.HandleConnect(context.Background(), userID, h))
	return h
}

// expectPersist wires the mocks for one successful relay between a and b.
func (f *fixture) expectPersist(a, b string) (*domain.Chat, uuid.UUID) {
	userA, userB := domain.ChatPair(a, b)
	chat := &domain.Chat{ID: uuid.New(), UserA: userA, UserB: userB}
	msgID := uuid.New()
	f.chats.On("EnsureChat", mock.Anything, a, b).Return(chat, nil)
	f.msgs.On("SaveMessage", mock.Anything, mock.AnythingOfType("*domain.Message")).
		Run(func(args mock.Arguments) {
			m := args.Get(1).(*domain.Message)
			m.ID = msgID
			m.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		}).
		Return(nil)
	f.chats.On("TouchLastMessage", mock.Anything, chat, mock.AnythingOfType("*domain.Message")).Return(nil)
	return chat, msgID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

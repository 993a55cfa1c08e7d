package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

// PresenceService owns the persisted visibility flag. Raw connection
// presence lives in the registry and is broadcast separately.
type PresenceService struct {
	log      *slog.Logger
	registry contracts.Registry
	users    domain.UserRepository
	now      func() time.Time
}

func NewPresenceService(
	log *slog.Logger,
	registry contracts.Registry,
	users domain.UserRepository,
) *PresenceService {
	return &PresenceService{
		log:      log.With("component", "presence"),
		registry: registry,
		users:    users,
		now:      time.Now,
	}
}

// SetVisibility persists the flag and announces it to every connection.
func (s *PresenceService) SetVisibility(ctx context.Context, userID string, online bool) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "PresenceService.SetVisibility", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Bool("online", online),
	))
	defer span.End()
	if userID == "" {
		span.RecordError(domain.ErrInvalidUserID)
		return nil, domain.ErrInvalidUserID
	}
	user, err := s.users.UpdateVisibility(ctx, userID, online, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update visibility failed")
		s.log.ErrorContext(ctx, "presence - set visibility - update failed", logging.User(userID), logging.Err(err))
		return nil, fmt.Errorf("update visibility: %w", err)
	}
	visibilityUpdates.Add(ctx, 1, metric.WithAttributes(attribute.Bool("online", online)))

	event := domain.EventUserOffline
	if online {
		event = domain.EventUserOnline
	}
	frame, err := domain.Encode(event, user.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range s.registry.Connections() {
		if err := c.Handle.Send(ctx, frame); err != nil {
			s.log.DebugContext(ctx, "presence - set visibility - send failed", logging.User(c.UserID), logging.Err(err))
		}
	}
	s.log.InfoContext(ctx, "presence - set visibility - announced", logging.User(userID), "online", online)
	return user, nil
}

// Profile returns the stored user and whether it holds a live connection
// on this process.
func (s *PresenceService) Profile(ctx context.Context, userID string) (*domain.User, bool, error) {
	if userID == "" {
		return nil, false, domain.ErrInvalidUserID
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	_, connected := s.registry.Lookup(userID)
	return user, connected, nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

type InitiateCall struct {
	CallID     string
	CallerID   string
	CalleeID   string
	CallerName string
	Signal     json.RawMessage
	IsVideo    bool
}

// CallRef addresses a call either by id or, when the id is empty, by the
// live call between the acting user and PeerID.
type CallRef struct {
	CallID string
	UserID string
	PeerID string
}

type outbound struct {
	to    string
	event string
	data  any
}

// CallService is the call signaling coordinator. It is the only writer of
// call state; transitions are checked under mu so concurrent answer and
// decline on one call have exactly one winner. Notifications go out after
// the lock is released.
type CallService struct {
	log      *slog.Logger
	registry contracts.Registry

	mu     sync.Mutex
	calls  map[string]*domain.CallSession
	byUser map[string]map[string]struct{} // user_id → call ids
	now    func() time.Time
}

func NewCallService(log *slog.Logger, registry contracts.Registry) *CallService {
	return &CallService{
		log:      log.With("component", "calls"),
		registry: registry,
		calls:    make(map[string]*domain.CallSession),
		byUser:   make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Initiate rings the callee. When the callee has no live connection the
// caller gets callError USER_OFFLINE and no session is created.
func (s *CallService) Initiate(ctx context.Context, req InitiateCall) (*domain.CallSession, error) {
	ctx, span := tracer.Start(ctx, "CallService.Initiate", trace.WithAttributes(
		attribute.String("caller_id", req.CallerID),
		attribute.String("callee_id", req.CalleeID),
		attribute.Bool("is_video", req.IsVideo),
	))
	defer span.End()
	if req.CallerID == "" || req.CalleeID == "" {
		s.reject(ctx, req.CallerID, req.CallID, domain.ErrInvalidUserID)
		return nil, domain.ErrInvalidUserID
	}
	callee, ok := s.registry.Lookup(req.CalleeID)
	if !ok {
		span.SetStatus(codes.Error, "callee offline")
		s.reject(ctx, req.CallerID, req.CallID, domain.ErrCalleeOffline)
		return nil, domain.ErrCalleeOffline
	}
	if req.CallID == "" {
		req.CallID = uuid.NewString()
	}
	sess := &domain.CallSession{
		CallID:    req.CallID,
		CallerID:  req.CallerID,
		CalleeID:  req.CalleeID,
		IsVideo:   req.IsVideo,
		State:     domain.CallRinging,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	if _, exists := s.calls[sess.CallID]; exists {
		s.mu.Unlock()
		s.reject(ctx, req.CallerID, req.CallID, domain.ErrCallExists)
		return nil, domain.ErrCallExists
	}
	s.storeLocked(sess)
	snapshot := *sess
	s.mu.Unlock()
	callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallRinging))))
	span.SetAttributes(attribute.String("call_id", sess.CallID))

	if err := push(ctx, callee, domain.EventCallIncoming, domain.CallIncoming{
		CallID:  sess.CallID,
		Signal:  req.Signal,
		From:    req.CallerID,
		Name:    req.CallerName,
		IsVideo: req.IsVideo,
	}); err != nil {
		// The callee vanished between lookup and send.
		s.fail(ctx, sess.CallID)
		s.reject(ctx, req.CallerID, sess.CallID, domain.ErrCalleeOffline)
		return nil, domain.ErrCalleeOffline
	}
	s.log.InfoContext(ctx, "calls - initiate - ringing",
		logging.Call(sess.CallID), logging.User(req.CallerID), logging.Receiver(req.CalleeID))
	return &snapshot, nil
}

// Answer moves a ringing call to Accepted and forwards the answer signal to
// the caller. Only the callee may answer.
func (s *CallService) Answer(ctx context.Context, ref CallRef, signal json.RawMessage) (*domain.CallSession, error) {
	ctx, span := tracer.Start(ctx, "CallService.Answer", trace.WithAttributes(
		attribute.String("call_id", ref.CallID),
		attribute.String("user_id", ref.UserID),
	))
	defer span.End()
	s.mu.Lock()
	sess, err := s.resolveLocked(ref)
	if err == nil && (sess.CalleeID != ref.UserID || !sess.State.CanTransition(domain.CallAccepted)) {
		err = domain.ErrInvalidTransition
	}
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		s.reject(ctx, ref.UserID, ref.CallID, err)
		return nil, err
	}
	sess.State = domain.CallAccepted
	snapshot := *sess
	s.mu.Unlock()
	callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallAccepted))))

	// The payload is the answer signal itself; the caller feeds it straight
	// to its peer connection.
	s.deliver(ctx, outbound{to: snapshot.CallerID, event: domain.EventCallAccepted, data: signal})
	s.log.InfoContext(ctx, "calls - answer - accepted", logging.Call(snapshot.CallID))
	return &snapshot, nil
}

// Decline rejects a ringing call. Only the callee may decline; the caller
// cancels with End.
func (s *CallService) Decline(ctx context.Context, ref CallRef) error {
	ctx, span := tracer.Start(ctx, "CallService.Decline", trace.WithAttributes(
		attribute.String("call_id", ref.CallID),
		attribute.String("user_id", ref.UserID),
	))
	defer span.End()
	s.mu.Lock()
	sess, err := s.resolveLocked(ref)
	if err == nil && (sess.CalleeID != ref.UserID || !sess.State.CanTransition(domain.CallDeclined)) {
		err = domain.ErrInvalidTransition
	}
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		s.reject(ctx, ref.UserID, ref.CallID, err)
		return err
	}
	sess.State = domain.CallDeclined
	s.removeLocked(sess)
	snapshot := *sess
	s.mu.Unlock()
	callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallDeclined))))

	s.deliver(ctx, outbound{to: snapshot.CallerID, event: domain.EventCallDeclined, data: domain.CallNotice{
		CallID: snapshot.CallID,
		From:   snapshot.CalleeID,
	}})
	s.log.InfoContext(ctx, "calls - decline - declined", logging.Call(snapshot.CallID))
	return nil
}

// End terminates a ringing or accepted call and tells the other party.
// Ending an unknown or already finished call does nothing and reports false.
func (s *CallService) End(ctx context.Context, ref CallRef) bool {
	ctx, span := tracer.Start(ctx, "CallService.End", trace.WithAttributes(
		attribute.String("call_id", ref.CallID),
		attribute.String("user_id", ref.UserID),
	))
	defer span.End()
	s.mu.Lock()
	sess, err := s.resolveLocked(ref)
	if err != nil || !sess.State.CanTransition(domain.CallEnded) {
		s.mu.Unlock()
		return false
	}
	sess.State = domain.CallEnded
	s.removeLocked(sess)
	snapshot := *sess
	s.mu.Unlock()
	callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallEnded))))

	s.deliver(ctx, outbound{to: snapshot.Peer(ref.UserID), event: domain.EventCallEnded, data: domain.CallNotice{
		CallID: snapshot.CallID,
		From:   ref.UserID,
	}})
	s.log.InfoContext(ctx, "calls - end - ended", logging.Call(snapshot.CallID), logging.User(ref.UserID))
	return true
}

// EndAllFor ends every live call involving userID. It runs when the user's
// connection is effectively gone.
func (s *CallService) EndAllFor(ctx context.Context, userID string) int {
	s.mu.Lock()
	var notices []outbound
	for id := range s.byUser[userID] {
		sess := s.calls[id]
		if sess == nil || !sess.State.CanTransition(domain.CallEnded) {
			continue
		}
		sess.State = domain.CallEnded
		s.removeLocked(sess)
		notices = append(notices, outbound{to: sess.Peer(userID), event: domain.EventCallEnded, data: domain.CallNotice{
			CallID: sess.CallID,
			From:   userID,
		}})
	}
	s.mu.Unlock()
	for _, n := range notices {
		callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallEnded))))
		s.deliver(ctx, n)
	}
	if len(notices) > 0 {
		s.log.InfoContext(ctx, "calls - end all - ended on disconnect", logging.User(userID), "count", len(notices))
	}
	return len(notices)
}

// Get returns a copy of the live session.
func (s *CallService) Get(callID string) (domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.calls[callID]
	if !ok {
		return domain.CallSession{}, false
	}
	return *sess, true
}

// Active returns how many calls are ringing or accepted.
func (s *CallService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *CallService) fail(ctx context.Context, callID string) {
	s.mu.Lock()
	sess, ok := s.calls[callID]
	if !ok || !sess.State.CanTransition(domain.CallErrored) {
		s.mu.Unlock()
		return
	}
	sess.State = domain.CallErrored
	s.removeLocked(sess)
	s.mu.Unlock()
	callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.CallErrored))))
}

func (s *CallService) resolveLocked(ref CallRef) (*domain.CallSession, error) {
	if ref.CallID != "" {
		sess, ok := s.calls[ref.CallID]
		if !ok {
			return nil, domain.ErrCallNotFound
		}
		if !sess.Involves(ref.UserID) {
			return nil, domain.ErrNotCallMember
		}
		return sess, nil
	}
	var found *domain.CallSession
	for id := range s.byUser[ref.UserID] {
		sess := s.calls[id]
		if sess == nil || sess.Peer(ref.UserID) != ref.PeerID {
			continue
		}
		if found == nil || sess.CreatedAt.After(found.CreatedAt) {
			found = sess
		}
	}
	if found == nil {
		return nil, domain.ErrCallNotFound
	}
	return found, nil
}

func (s *CallService) storeLocked(sess *domain.CallSession) {
	s.calls[sess.CallID] = sess
	for _, uid := range []string{sess.CallerID, sess.CalleeID} {
		if s.byUser[uid] == nil {
			s.byUser[uid] = make(map[string]struct{})
		}
		s.byUser[uid][sess.CallID] = struct{}{}
	}
}

// removeLocked drops a session that reached a terminal state.
func (s *CallService) removeLocked(sess *domain.CallSession) {
	delete(s.calls, sess.CallID)
	for _, uid := range []string{sess.CallerID, sess.CalleeID} {
		delete(s.byUser[uid], sess.CallID)
		if len(s.byUser[uid]) == 0 {
			delete(s.byUser, uid)
		}
	}
}

func (s *CallService) deliver(ctx context.Context, n outbound) {
	if n.to == "" {
		return
	}
	h, ok := s.registry.Lookup(n.to)
	if !ok {
		return
	}
	if err := push(ctx, h, n.event, n.data); err != nil {
		s.log.DebugContext(ctx, "calls - deliver - send failed", logging.User(n.to), logging.Event(n.event), logging.Err(err))
	}
}

// reject reports a failed call operation to the user that invoked it.
func (s *CallService) reject(ctx context.Context, userID, callID string, err error) {
	s.log.DebugContext(ctx, "calls - reject", logging.User(userID), logging.Call(callID), logging.Err(err))
	s.deliver(ctx, outbound{to: userID, event: domain.EventCallError, data: callError(callID, err)})
}

func callError(callID string, err error) domain.CallError {
	out := domain.CallError{CallID: callID, Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrCalleeOffline):
		out.Reason = domain.ReasonUserOffline
		out.Message = "User is not online"
	case errors.Is(err, domain.ErrCallNotFound), errors.Is(err, domain.ErrNotCallMember):
		out.Reason = domain.ReasonCallNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		out.Reason = domain.ReasonInvalidTransition
	default:
		out.Reason = domain.ReasonInvalidRequest
	}
	return out
}

package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
)

var (
	offerSignal  = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	answerSignal = json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
)

func TestCallHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	sess, err := f.calls.Initiate(ctx, services.InitiateCall{
		CallerID: "alice", CalleeID: "bob", CallerName: "Alice", Signal: offerSignal, IsVideo: false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.CallID, "a call id is generated when the client sends none")
	assert.Equal(t, domain.CallRinging, sess.State)

	incoming := bob.Events(domain.EventCallIncoming)
	require.Len(t, incoming, 1)
	in := decode[domain.CallIncoming](t, incoming[0])
	assert.Equal(t, "alice", in.From)
	assert.Equal(t, "Alice", in.Name)
	assert.False(t, in.IsVideo)
	assert.JSONEq(t, string(offerSignal), string(in.Signal))

	_, err = f.calls.Answer(ctx, services.CallRef{CallID: sess.CallID, UserID: "bob"}, answerSignal)
	require.NoError(t, err)
	accepted := alice.Events(domain.EventCallAccepted)
	require.Len(t, accepted, 1)
	assert.JSONEq(t, string(answerSignal), string(accepted[0]), "callAccepted carries the bare answer signal")
	got, ok := f.calls.Get(sess.CallID)
	require.True(t, ok)
	assert.Equal(t, domain.CallAccepted, got.State)

	t.Run("Failure - second answer is rejected without a duplicate event", func(t *testing.T) {
		_, err := f.calls.Answer(ctx, services.CallRef{CallID: sess.CallID, UserID: "bob"}, answerSignal)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Len(t, alice.Events(domain.EventCallAccepted), 1)
		errs := bob.Events(domain.EventCallError)
		require.Len(t, errs, 1)
		assert.Equal(t, domain.ReasonInvalidTransition, decode[domain.CallError](t, errs[0]).Reason)
	})

	t.Run("Success - end is idempotent", func(t *testing.T) {
		assert.True(t, f.calls.End(ctx, services.CallRef{CallID: sess.CallID, UserID: "alice"}))
		assert.False(t, f.calls.End(ctx, services.CallRef{CallID: sess.CallID, UserID: "alice"}))
		assert.False(t, f.calls.End(ctx, services.CallRef{CallID: sess.CallID, UserID: "bob"}))

		ended := bob.Events(domain.EventCallEnded)
		require.Len(t, ended, 1)
		assert.Equal(t, domain.CallNotice{CallID: sess.CallID, From: "alice"}, decode[domain.CallNotice](t, ended[0]))
		assert.Empty(t, alice.Events(domain.EventCallEnded))
		_, ok := f.calls.Get(sess.CallID)
		assert.False(t, ok, "terminal sessions are dropped")
	})
}

func TestCallCalleeOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.connect(t, "alice")

	sess, err := f.calls.Initiate(ctx, services.InitiateCall{
		CallID: "call-1", CallerID: "alice", CalleeID: "bob", Signal: offerSignal, IsVideo: true,
	})

	assert.ErrorIs(t, err, domain.ErrCalleeOffline)
	assert.Nil(t, sess)
	errs := alice.Events(domain.EventCallError)
	require.Len(t, errs, 1)
	ce := decode[domain.CallError](t, errs[0])
	assert.Equal(t, domain.ReasonUserOffline, ce.Reason)
	assert.Equal(t, "User is not online", ce.Message)
	assert.Zero(t, f.calls.Active())

	t.Run("Success - answer and decline on the missing call change nothing", func(t *testing.T) {
		bob := f.connect(t, "bob")

		_, err := f.calls.Answer(ctx, services.CallRef{CallID: "call-1", UserID: "bob"}, answerSignal)
		assert.ErrorIs(t, err, domain.ErrCallNotFound)
		err = f.calls.Decline(ctx, services.CallRef{CallID: "call-1", UserID: "bob"})
		assert.ErrorIs(t, err, domain.ErrCallNotFound)

		assert.Zero(t, f.calls.Active())
		assert.Empty(t, alice.Events(domain.EventCallAccepted))
		assert.Empty(t, alice.Events(domain.EventCallDeclined))
		assert.Len(t, bob.Events(domain.EventCallError), 2)
	})
}

func TestCallDecline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	sess, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "alice", CalleeID: "bob", Signal: offerSignal})
	require.NoError(t, err)

	t.Run("Failure - caller cannot decline", func(t *testing.T) {
		err := f.calls.Decline(ctx, services.CallRef{CallID: sess.CallID, UserID: "alice"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("Success - callee declines by peer address", func(t *testing.T) {
		err := f.calls.Decline(ctx, services.CallRef{UserID: "bob", PeerID: "alice"})

		require.NoError(t, err)
		declined := alice.Events(domain.EventCallDeclined)
		require.Len(t, declined, 1)
		assert.Equal(t, sess.CallID, decode[domain.CallNotice](t, declined[0]).CallID)
		assert.Zero(t, f.calls.Active())
	})

	t.Run("Failure - answer after decline", func(t *testing.T) {
		_, err := f.calls.Answer(ctx, services.CallRef{CallID: sess.CallID, UserID: "bob"}, answerSignal)
		assert.ErrorIs(t, err, domain.ErrCallNotFound)
		assert.Empty(t, alice.Events(domain.EventCallAccepted))
		assert.NotEmpty(t, bob.Events(domain.EventCallError))
	})
}

func TestCallAnswerDeclineRace(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		f := newFixture()
		alice := f.connect(t, "alice")
		f.connect(t, "bob")
		sess, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "alice", CalleeID: "bob", Signal: offerSignal})
		require.NoError(t, err)
		ref := services.CallRef{CallID: sess.CallID, UserID: "bob"}

		var wg sync.WaitGroup
		var answerErr, declineErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, answerErr = f.calls.Answer(ctx, ref, answerSignal)
		}()
		go func() {
			defer wg.Done()
			declineErr = f.calls.Decline(ctx, ref)
		}()
		wg.Wait()

		require.True(t, (answerErr == nil) != (declineErr == nil), "exactly one transition wins")
		outcomes := len(alice.Events(domain.EventCallAccepted)) + len(alice.Events(domain.EventCallDeclined))
		assert.Equal(t, 1, outcomes)
	}
}

func TestCallEndAllForDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	carol := f.connect(t, "carol")
	first, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "alice", CalleeID: "bob"})
	require.NoError(t, err)
	_, err = f.calls.Answer(ctx, services.CallRef{CallID: first.CallID, UserID: "bob"}, answerSignal)
	require.NoError(t, err)
	second, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "carol", CalleeID: "alice"})
	require.NoError(t, err)

	n := f.calls.EndAllFor(ctx, "alice")

	assert.Equal(t, 2, n)
	assert.Zero(t, f.calls.Active())
	require.Len(t, bob.Events(domain.EventCallEnded), 1)
	require.Len(t, carol.Events(domain.EventCallEnded), 1)
	assert.Equal(t, second.CallID, decode[domain.CallNotice](t, carol.Events(domain.EventCallEnded)[0]).CallID)
	assert.Empty(t, alice.Events(domain.EventCallEnded))
	assert.Zero(t, f.calls.EndAllFor(ctx, "alice"))
}

func TestCallInitiateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.connect(t, "alice")
	f.connect(t, "bob")

	_, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "alice", CalleeID: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = f.calls.Initiate(ctx, services.InitiateCall{CallID: "dup", CallerID: "alice", CalleeID: "bob"})
	require.NoError(t, err)
	_, err = f.calls.Initiate(ctx, services.InitiateCall{CallID: "dup", CallerID: "alice", CalleeID: "bob"})
	assert.ErrorIs(t, err, domain.ErrCallExists)

	assert.Len(t, alice.Events(domain.EventCallError), 2)
	assert.Equal(t, 1, f.calls.Active())
}

func TestCallOutsiderCannotTouchCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.connect(t, "alice")
	bob := f.connect(t, "bob")
	f.connect(t, "mallory")
	sess, err := f.calls.Initiate(ctx, services.InitiateCall{CallerID: "alice", CalleeID: "bob"})
	require.NoError(t, err)

	_, err = f.calls.Answer(ctx, services.CallRef{CallID: sess.CallID, UserID: "mallory"}, answerSignal)
	assert.ErrorIs(t, err, domain.ErrNotCallMember)
	assert.False(t, f.calls.End(ctx, services.CallRef{CallID: sess.CallID, UserID: "mallory"}))

	got, ok := f.calls.Get(sess.CallID)
	require.True(t, ok)
	assert.Equal(t, domain.CallRinging, got.State)
	assert.Empty(t, bob.Events(domain.EventCallEnded))
}

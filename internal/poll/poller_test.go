package poll_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favorsweb/internal/backend"
	"favorsweb/internal/backend/backendtest"
	"favorsweb/internal/domain"
	"favorsweb/internal/poll"
)

func TestPoller_FirstErrorIsReturnedLaterErrorsSwallowed(t *testing.T) {
	var calls atomic.Int32
	var updates atomic.Int32
	fetch := func(context.Context) (int, error) {
		n := calls.Add(1)
		if n == 1 || n == 3 {
			return 0, errors.New("boom")
		}
		return int(n), nil
	}

	p := poll.New(5*time.Millisecond, fetch, func(int) { updates.Add(1) })
	err := p.Start(context.Background())
	require.EqualError(t, err, "boom")
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 5 }, time.Second, time.Millisecond)
	assert.True(t, p.Running())
	assert.GreaterOrEqual(t, updates.Load(), int32(3))
}

func TestPoller_StopEndsPolling(t *testing.T) {
	var calls atomic.Int32
	p := poll.New(2*time.Millisecond, func(context.Context) (struct{}, error) {
		calls.Add(1)
		return struct{}{}, nil
	}, nil)

	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), poll.ErrRunning)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	// A stopped poller can be stopped again and restarted.
	p.Stop()
	require.NoError(t, p.Start(context.Background()))
	p.Stop()
}

func TestPoller_ContextCancelEndsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := poll.New(2*time.Millisecond, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, nil)

	require.NoError(t, p.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)
	p.Stop()
}

func TestPoller_DefaultInterval(t *testing.T) {
	p := poll.New(0, func(context.Context) (int, error) { return 0, nil }, nil)
	assert.Equal(t, poll.DefaultInterval, p.Interval())
}

type recorder struct {
	mu   sync.Mutex
	last []domain.Message
	n    int
}

func (r *recorder) update(msgs []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = msgs
	r.n++
}

func (r *recorder) snapshot() ([]domain.Message, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.n
}

func TestThread_SendAndRefresh(t *testing.T) {
	fake := backendtest.New(t)
	alice, tok := fake.AddUser("alice", "pw")
	bob, _ := fake.AddUser("bob", "pw")
	c := backend.New(backend.Options{BaseURL: fake.URL(), HTTPClient: fake.Client(), Tokens: backend.StaticToken(tok)})
	ctx := context.Background()

	conv, err := c.Messaging.CreateConversation(ctx, domain.CreateConversationRequest{
		Type:           domain.ConversationDirect,
		ParticipantIDs: []int64{alice.ID, bob.ID},
	})
	require.NoError(t, err)

	var rec recorder
	// Long interval: only Start and SendAndRefresh fetch.
	th := poll.Messages(c.Messaging, conv.ID, time.Hour, rec.update)
	require.NoError(t, th.Start(ctx))
	defer th.Stop()

	msgs, n := rec.snapshot()
	assert.Empty(t, msgs)
	assert.Equal(t, 1, n)

	for _, body := range []string{"first", "  second  "} {
		_, err := th.SendAndRefresh(ctx, body)
		require.NoError(t, err)
	}

	msgs, n = rec.snapshot()
	assert.Equal(t, 3, n)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, 3, fake.Hits("GET /api/conversations/{id}/messages"))
	assert.Equal(t, 2, fake.Hits("POST /api/conversations/messages"))
}

func TestThread_SendFailureSkipsRefresh(t *testing.T) {
	fake := backendtest.New(t)
	_, tok := fake.AddUser("alice", "pw")
	c := backend.New(backend.Options{BaseURL: fake.URL(), HTTPClient: fake.Client(), Tokens: backend.StaticToken(tok)})

	th := poll.Messages(c.Messaging, 42, time.Hour, nil)
	_, err := th.SendAndRefresh(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, fake.Hits("POST /api/conversations/messages"))
	assert.Zero(t, fake.Hits("GET /api/conversations/{id}/messages"))
}

func TestNotifications_Polls(t *testing.T) {
	fake := backendtest.New(t)
	_, aliceTok := fake.AddUser("alice", "pw")
	bob, bobTok := fake.AddUser("bob", "pw")
	alice := backend.New(backend.Options{BaseURL: fake.URL(), HTTPClient: fake.Client(), Tokens: backend.StaticToken(aliceTok)})
	bobClient := backend.New(backend.Options{BaseURL: fake.URL(), HTTPClient: fake.Client(), Tokens: backend.StaticToken(bobTok)})
	ctx := context.Background()

	var unread atomic.Int32
	p := poll.Notifications(bobClient.Notifications, 5*time.Millisecond, func(ns []domain.Notification) {
		unread.Store(int32(domain.UnreadCount(ns)))
	})
	require.NoError(t, p.Start(ctx))
	defer p.Stop()
	assert.Zero(t, unread.Load())

	require.NoError(t, alice.Friends.SendRequest(ctx, bob.ID))
	require.Eventually(t, func() bool { return unread.Load() == 1 }, time.Second, time.Millisecond)
}

package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"yolda/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu        sync.Mutex
	reminders []int64
	expired   []int64
	reverted  []int64
}

func (r *recordingNotifier) OrderReminder(ctx context.Context, o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, o.ID)
}

func (r *recordingNotifier) OrderExpired(ctx context.Context, o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, o.ID)
}

func (r *recordingNotifier) OrderReverted(ctx context.Context, o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reverted = append(r.reverted, o.ID)
}

func (r *recordingNotifier) counts() (reminders, expired, reverted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reminders), len(r.expired), len(r.reverted)
}

func newTestScheduler(store *memStore, timers Timers) (*Scheduler, *recordingNotifier) {
	n := &recordingNotifier{}
	m := NewMachine(store, zap.NewNop())
	return NewScheduler(m, store, n, timers, zap.NewNop()), n
}

func TestProcessingTimeoutReverts(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: 20 * time.Millisecond,
		ReminderDelay:     time.Hour,
		ExpiryDelay:       2 * time.Hour,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	_, err := store.ClaimInitiated(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	s.ArmProcessing(orderID)

	require.Eventually(t, func() bool {
		return store.stateOf(orderID) == domain.StateInitiated
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, _, reverted := n.counts()
		return reverted == 1
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, store.actorOf(orderID))
}

func TestProcessingTimerNoopAfterResolve(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: 20 * time.Millisecond,
		ReminderDelay:     time.Hour,
		ExpiryDelay:       2 * time.Hour,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	_, err := store.ClaimInitiated(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	// The timer is left armed to simulate a resolve racing the timeout.
	s.ArmProcessing(orderID)
	ok, err := store.ResolveFrom(context.Background(), orderID, domain.StateProcessing, domain.StateCompleted)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, domain.StateCompleted, store.stateOf(orderID))
	_, _, reverted := n.counts()
	assert.Zero(t, reverted)
}

func TestReminderThenExpiry(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     20 * time.Millisecond,
		ExpiryDelay:       60 * time.Millisecond,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	s.ArmLifecycle(orderID)

	require.Eventually(t, func() bool {
		reminders, _, _ := n.counts()
		return reminders == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StateInitiated, store.stateOf(orderID))

	require.Eventually(t, func() bool {
		return store.stateOf(orderID) == domain.StateCanceled
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, expired, _ := n.counts()
		return expired == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReminderSkippedWhenClaimed(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     20 * time.Millisecond,
		ExpiryDelay:       time.Hour,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	s.ArmLifecycle(orderID)

	_, err := store.ClaimInitiated(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	reminders, _, _ := n.counts()
	assert.Zero(t, reminders)
}

func TestCancelLifecycleStopsTimers(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     20 * time.Millisecond,
		ExpiryDelay:       40 * time.Millisecond,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	s.ArmLifecycle(orderID)
	s.CancelLifecycle(orderID)

	time.Sleep(80 * time.Millisecond)

	reminders, expired, _ := n.counts()
	assert.Zero(t, reminders)
	assert.Zero(t, expired)
	assert.Equal(t, domain.StateInitiated, store.stateOf(orderID))

	p, r, e := s.Stats()
	assert.Zero(t, p)
	assert.Zero(t, r)
	assert.Zero(t, e)
}

func TestRecoverRevertsStaleProcessing(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     time.Hour,
		ExpiryDelay:       2 * time.Hour,
	})
	defer s.Stop()

	orderID := store.addOrder(time.Now())
	_, err := store.ClaimInitiated(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	require.NoError(t, s.Recover(context.Background()))

	assert.Equal(t, domain.StateInitiated, store.stateOf(orderID))
	assert.Nil(t, store.actorOf(orderID))
	_, _, reverted := n.counts()
	assert.Equal(t, 1, reverted)
}

func TestRecoverExpiresAgedOrders(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     15 * time.Minute,
		ExpiryDelay:       20 * time.Minute,
	})
	defer s.Stop()

	aged := store.addOrder(time.Now().Add(-30 * time.Minute))
	fresh := store.addOrder(time.Now())

	require.NoError(t, s.Recover(context.Background()))

	assert.Equal(t, domain.StateCanceled, store.stateOf(aged))
	assert.Equal(t, domain.StateInitiated, store.stateOf(fresh))

	_, expired, _ := n.counts()
	assert.Equal(t, 1, expired)

	// The fresh order has both timers re-armed.
	_, reminders, expiries := s.Stats()
	assert.Equal(t, 1, reminders)
	assert.Equal(t, 1, expiries)
}

func TestRecoverSkipsPassedReminder(t *testing.T) {
	store := newMemStore()
	s, _ := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     15 * time.Minute,
		ExpiryDelay:       20 * time.Minute,
	})
	defer s.Stop()

	// Older than the reminder delay but younger than expiry: the owner was
	// already nudged before the restart, only expiry is re-armed.
	store.addOrder(time.Now().Add(-17 * time.Minute))

	require.NoError(t, s.Recover(context.Background()))

	_, reminders, expiries := s.Stats()
	assert.Zero(t, reminders)
	assert.Equal(t, 1, expiries)
}

func TestRecoverTwiceIsIdempotent(t *testing.T) {
	store := newMemStore()
	s, n := newTestScheduler(store, Timers{
		ProcessingTimeout: time.Hour,
		ReminderDelay:     15 * time.Minute,
		ExpiryDelay:       20 * time.Minute,
	})
	defer s.Stop()

	aged := store.addOrder(time.Now().Add(-30 * time.Minute))

	require.NoError(t, s.Recover(context.Background()))
	require.NoError(t, s.Recover(context.Background()))

	assert.Equal(t, domain.StateCanceled, store.stateOf(aged))
	_, expired, _ := n.counts()
	assert.Equal(t, 1, expired)
}

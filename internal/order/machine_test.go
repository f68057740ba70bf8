package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"yolda/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMachine(store *memStore) *Machine {
	return NewMachine(store, zap.NewNop())
}

func TestClaimExactlyOneWinner(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	const drivers = 16
	results := make([]ClaimResult, drivers)
	errs := make([]error, drivers)

	var wg sync.WaitGroup
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Claim(context.Background(), orderID, fmt.Sprintf("driver-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "driver %d", i)
	}

	accepted, taken := 0, 0
	for _, res := range results {
		switch res.Outcome {
		case ClaimAccepted:
			accepted++
		case ClaimTakenByOther:
			taken++
		default:
			t.Fatalf("unexpected outcome %v", res.Outcome)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, drivers-1, taken)
	assert.Equal(t, domain.StateProcessing, store.stateOf(orderID))
}

func TestClaimIdempotentForHolder(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	res, err := m.Claim(context.Background(), orderID, "driver-1")
	require.NoError(t, err)
	require.Equal(t, ClaimAccepted, res.Outcome)

	// Same driver presses the button again.
	res, err = m.Claim(context.Background(), orderID, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyYours, res.Outcome)

	res, err = m.Claim(context.Background(), orderID, "driver-2")
	require.NoError(t, err)
	assert.Equal(t, ClaimTakenByOther, res.Outcome)
}

func TestClaimAfterResolve(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	_, err := m.Resolve(context.Background(), orderID, domain.StateCanceled)
	require.NoError(t, err)

	res, err := m.Claim(context.Background(), orderID, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimNotClaimable, res.Outcome)
	assert.Equal(t, domain.StateCanceled, res.State)
}

func TestResolveReturnsPreviousState(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)

	unclaimed := store.addOrder(time.Now())
	prev, err := m.Resolve(context.Background(), unclaimed, domain.StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInitiated, prev)

	claimed := store.addOrder(time.Now())
	_, err = m.Claim(context.Background(), claimed, "driver-1")
	require.NoError(t, err)
	prev, err = m.Resolve(context.Background(), claimed, domain.StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, prev)
}

func TestResolveTerminalIsRejected(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	_, err := m.Resolve(context.Background(), orderID, domain.StateCompleted)
	require.NoError(t, err)

	_, err = m.Resolve(context.Background(), orderID, domain.StateCanceled)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.StateCompleted, store.stateOf(orderID))
}

func TestResolveRejectsNonTerminalOutcome(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	_, err := m.Resolve(context.Background(), orderID, domain.StateProcessing)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.StateInitiated, store.stateOf(orderID))
}

func TestRevertStaleProcessing(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	_, err := m.Claim(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	ok, err := m.RevertStaleProcessing(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StateInitiated, store.stateOf(orderID))
	assert.Nil(t, store.actorOf(orderID))

	// Second revert finds nothing to do.
	ok, err = m.RevertStaleProcessing(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, ok)

	// The order is claimable again, by a different driver.
	res, err := m.Claim(context.Background(), orderID, "driver-2")
	require.NoError(t, err)
	assert.Equal(t, ClaimAccepted, res.Outcome)
}

func TestExpireInitiated(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	ok, err := m.ExpireInitiated(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StateCanceled, store.stateOf(orderID))

	ok, err = m.ExpireInitiated(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireSkipsClaimedOrder(t *testing.T) {
	store := newMemStore()
	m := newTestMachine(store)
	orderID := store.addOrder(time.Now())

	_, err := m.Claim(context.Background(), orderID, "driver-1")
	require.NoError(t, err)

	ok, err := m.ExpireInitiated(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.StateProcessing, store.stateOf(orderID))
}

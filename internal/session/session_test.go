package session

import (
	"context"
	"testing"
	"time"

	"yolda/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s := NewStore(mr.Addr(), "", 0, time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestGetMissingReturnsEmptyState(t *testing.T) {
	s, _ := newTestStore(t)

	state, err := s.Get(context.Background(), 111)
	require.NoError(t, err)
	assert.Equal(t, domain.StepNone, state.Step)
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := &domain.UserState{
		Step:         domain.StepTripToDistrict,
		Kind:         string(domain.KindTrip),
		FromRegionID: 3,
		FromRegion:   "Toshkent",
		Passengers:   2,
	}
	require.NoError(t, s.Set(ctx, 111, in))

	out, err := s.Get(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestClearEndsFlow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 111, &domain.UserState{Step: domain.StepRegisterPhone}))
	require.NoError(t, s.Clear(ctx, 111))

	state, err := s.Get(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, domain.StepNone, state.Step)
}

func TestSessionExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 111, &domain.UserState{Step: domain.StepRegisterPhone}))

	mr.FastForward(2 * time.Hour)

	state, err := s.Get(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, domain.StepNone, state.Step)
}

func TestCorruptSessionResets(t *testing.T) {
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("session:111", "{not json"))

	state, err := s.Get(context.Background(), 111)
	require.NoError(t, err)
	assert.Equal(t, domain.StepNone, state.Step)
}

package order

import (
	"context"
	"sync"
	"time"

	"yolda/internal/domain"
)

// memStore is an in-memory StatusStore/OrderStore with the same conditional
// write semantics the sqlite repository provides.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*domain.Order
	status map[int64]*domain.OrderStatus
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		orders: make(map[int64]*domain.Order),
		status: make(map[int64]*domain.OrderStatus),
	}
}

func (m *memStore) addOrder(createdAt time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.orders[id] = &domain.Order{
		ID:          id,
		Kind:        domain.KindTrip,
		PassengerID: "passenger",
		CreatedAt:   createdAt,
	}
	m.status[id] = &domain.OrderStatus{
		OrderID:   id,
		State:     domain.StateInitiated,
		UpdatedAt: createdAt,
	}
	return id
}

func (m *memStore) GetStatus(ctx context.Context, orderID int64) (*domain.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[orderID]
	if !ok {
		return nil, ErrNoStatus
	}
	cp := *st
	return &cp, nil
}

func (m *memStore) ClaimInitiated(ctx context.Context, orderID int64, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[orderID]
	if !ok || st.State != domain.StateInitiated {
		return false, nil
	}
	st.State = domain.StateProcessing
	st.ActorID = &actorID
	st.UpdatedAt = time.Now()
	if o, ok := m.orders[orderID]; ok {
		o.DriverID = &actorID
	}
	return true, nil
}

func (m *memStore) ResolveFrom(ctx context.Context, orderID int64, from, to domain.State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[orderID]
	if !ok || st.State != from {
		return false, nil
	}
	st.State = to
	st.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) RevertProcessing(ctx context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[orderID]
	if !ok || st.State != domain.StateProcessing {
		return false, nil
	}
	st.State = domain.StateInitiated
	st.ActorID = nil
	st.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	if st, ok := m.status[orderID]; ok {
		stCp := *st
		cp.Status = &stCp
	}
	return &cp, nil
}

func (m *memStore) ListOrdersByState(ctx context.Context, state domain.State) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for id, st := range m.status {
		if st.State != state {
			continue
		}
		cp := *m.orders[id]
		stCp := *st
		cp.Status = &stCp
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) stateOf(orderID int64) domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[orderID].State
}

func (m *memStore) actorOf(orderID int64) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[orderID].ActorID
}

package order

import (
	"context"
	"errors"
	"fmt"

	"yolda/internal/domain"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means the order id does not resolve to a record.
	ErrNotFound = errors.New("order not found")
	// ErrNoStatus means an order exists without its 1:1 status record.
	ErrNoStatus = errors.New("order has no status record")
	// ErrInvalidTransition means the requested edge is not in the status graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict means a conditional write kept losing to concurrent writers.
	ErrConflict = errors.New("order status conflict")
)

// StatusStore is the persisted status surface the machine runs on. Every
// mutating method is a single conditional write: it succeeds (true) only if
// the stored state still matches the expected precondition, so two racing
// callers can never both win.
type StatusStore interface {
	GetStatus(ctx context.Context, orderID int64) (*domain.OrderStatus, error)

	// ClaimInitiated moves initiated -> processing and records the claiming
	// actor, atomically.
	ClaimInitiated(ctx context.Context, orderID int64, actorID string) (bool, error)

	// ResolveFrom moves from -> to where from is an active state.
	ResolveFrom(ctx context.Context, orderID int64, from, to domain.State) (bool, error)

	// RevertProcessing moves processing -> initiated and clears the actor.
	RevertProcessing(ctx context.Context, orderID int64) (bool, error)
}

// ClaimOutcome classifies the result of a claim attempt.
type ClaimOutcome int

const (
	ClaimAccepted ClaimOutcome = iota
	// ClaimAlreadyYours: the same actor pressed the button again while
	// holding the claim; answered idempotently, no timer re-arm.
	ClaimAlreadyYours
	// ClaimTakenByOther: another actor holds the claim.
	ClaimTakenByOther
	// ClaimNotClaimable: the order left the claimable state entirely.
	ClaimNotClaimable
)

// ClaimResult is a value, not an error: contention is a normal outcome.
type ClaimResult struct {
	Outcome ClaimOutcome
	// State is the observed state for ClaimNotClaimable.
	State domain.State
}

// Machine is the single authority for validating and applying status
// transitions. It performs no side effects itself: callers notify actors,
// update the channel and arm timers based on the returned outcomes, which
// keeps the machine testable without network I/O.
type Machine struct {
	store  StatusStore
	logger *zap.Logger
}

func NewMachine(store StatusStore, logger *zap.Logger) *Machine {
	return &Machine{
		store:  store,
		logger: logger,
	}
}

// Claim attempts initiated -> processing on behalf of actorID. Exactly one
// of several concurrent callers can observe ClaimAccepted; the rest are
// classified by re-reading the state they lost to.
func (m *Machine) Claim(ctx context.Context, orderID int64, actorID string) (ClaimResult, error) {
	ok, err := m.store.ClaimInitiated(ctx, orderID, actorID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim order %d: %w", orderID, err)
	}
	if ok {
		m.logger.Info("order claimed",
			zap.Int64("order_id", orderID),
			zap.String("actor_id", actorID))
		return ClaimResult{Outcome: ClaimAccepted}, nil
	}

	// Lost the conditional write; classify against the current state.
	status, err := m.store.GetStatus(ctx, orderID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim order %d: %w", orderID, err)
	}

	if status.State == domain.StateProcessing {
		if status.ActorID != nil && *status.ActorID == actorID {
			return ClaimResult{Outcome: ClaimAlreadyYours}, nil
		}
		return ClaimResult{Outcome: ClaimTakenByOther}, nil
	}

	return ClaimResult{Outcome: ClaimNotClaimable, State: status.State}, nil
}

// Resolve moves an active order to a terminal outcome and returns the
// previous state (callers use it to decide whether a driver was ever
// notified). Resolving an already-terminal order fails with
// ErrInvalidTransition and changes nothing.
func (m *Machine) Resolve(ctx context.Context, orderID int64, outcome domain.State) (domain.State, error) {
	if !outcome.IsTerminal() {
		return "", fmt.Errorf("resolve order %d to %q: %w", orderID, outcome, ErrInvalidTransition)
	}

	// The conditional write needs the exact current state; under contention
	// the re-read observes whichever writer won and tries again.
	const attempts = 3
	for i := 0; i < attempts; i++ {
		status, err := m.store.GetStatus(ctx, orderID)
		if err != nil {
			return "", fmt.Errorf("resolve order %d: %w", orderID, err)
		}

		if !status.State.IsActive() {
			return status.State, fmt.Errorf("resolve order %d from %q: %w", orderID, status.State, ErrInvalidTransition)
		}

		ok, err := m.store.ResolveFrom(ctx, orderID, status.State, outcome)
		if err != nil {
			return "", fmt.Errorf("resolve order %d: %w", orderID, err)
		}
		if ok {
			m.logger.Info("order resolved",
				zap.Int64("order_id", orderID),
				zap.String("from", string(status.State)),
				zap.String("to", string(outcome)))
			return status.State, nil
		}
	}

	return "", fmt.Errorf("resolve order %d: %w", orderID, ErrConflict)
}

// RevertStaleProcessing is the system-only processing -> initiated edge,
// fired by the processing timeout and by the restart recovery sweep. If the
// state already changed this is a silent no-op, not an error.
func (m *Machine) RevertStaleProcessing(ctx context.Context, orderID int64) (bool, error) {
	ok, err := m.store.RevertProcessing(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("revert order %d: %w", orderID, err)
	}
	if ok {
		m.logger.Info("stale processing order reverted", zap.Int64("order_id", orderID))
	}
	return ok, nil
}

// ExpireInitiated force-cancels an order that nobody ever claimed. The
// conditional write makes it idempotent: it succeeds only while the order
// is still initiated.
func (m *Machine) ExpireInitiated(ctx context.Context, orderID int64) (bool, error) {
	ok, err := m.store.ResolveFrom(ctx, orderID, domain.StateInitiated, domain.StateCanceled)
	if err != nil {
		return false, fmt.Errorf("expire order %d: %w", orderID, err)
	}
	if ok {
		m.logger.Info("unclaimed order expired", zap.Int64("order_id", orderID))
	}
	return ok, nil
}

package order

import (
	"context"
	"sync"
	"time"

	"yolda/internal/domain"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// OrderStore is the read surface the scheduler needs: loading an order for
// rendering a notification and scanning by state for the recovery sweep.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByState(ctx context.Context, state domain.State) ([]*domain.Order, error)
}

// Notifier receives the scheduler's side effects. Implementations deliver
// messages and sync the channel; delivery failures are theirs to log and
// swallow — announcements are best-effort, persisted state is authoritative.
type Notifier interface {
	// OrderReminder nudges the owner of a still-unclaimed order.
	OrderReminder(ctx context.Context, o *domain.Order)
	// OrderExpired tells the owner the order was auto-canceled.
	OrderExpired(ctx context.Context, o *domain.Order)
	// OrderReverted announces that a stalled claim was released.
	OrderReverted(ctx context.Context, o *domain.Order)
}

// Timers holds the configurable delays.
type Timers struct {
	// ProcessingTimeout is the window a claiming driver has before the
	// order reverts to initiated.
	ProcessingTimeout time.Duration
	// ReminderDelay is the age at which an unclaimed order's owner is nudged.
	ReminderDelay time.Duration
	// ExpiryDelay is the total age at which an unclaimed order is
	// auto-canceled. Must exceed ReminderDelay.
	ExpiryDelay time.Duration
}

// Scheduler owns the per-order timers. The timer registries are a
// process-local, best-effort cache: whether an order is still pending is
// always decided by re-reading persisted state when a timer fires, never by
// the registries themselves, so a fired timer whose precondition is gone is
// a no-op. Recover rebuilds everything from persisted state after a restart.
type Scheduler struct {
	machine  *Machine
	orders   OrderStore
	notifier Notifier
	timers   Timers
	logger   *zap.Logger

	mu         sync.Mutex
	processing map[int64]*time.Timer
	reminders  map[int64]*time.Timer
	expiries   map[int64]*time.Timer
	stopped    bool
}

func NewScheduler(machine *Machine, orders OrderStore, notifier Notifier, timers Timers, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		machine:    machine,
		orders:     orders,
		notifier:   notifier,
		timers:     timers,
		logger:     logger,
		processing: make(map[int64]*time.Timer),
		reminders:  make(map[int64]*time.Timer),
		expiries:   make(map[int64]*time.Timer),
	}
}

// ArmProcessing starts the processing timeout for a freshly claimed order.
// An existing timer for the same order is replaced.
func (s *Scheduler) ArmProcessing(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.processing[orderID]; ok {
		t.Stop()
	}
	s.processing[orderID] = time.AfterFunc(s.timers.ProcessingTimeout, func() {
		s.fireProcessing(orderID)
	})
}

// CancelProcessing drops the processing timer once a resolve won the race.
func (s *Scheduler) CancelProcessing(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.processing[orderID]; ok {
		t.Stop()
		delete(s.processing, orderID)
	}
}

// ArmLifecycle starts the reminder and expiry timers at order creation.
func (s *Scheduler) ArmLifecycle(orderID int64) {
	s.armLifecycle(orderID, s.timers.ReminderDelay, s.timers.ExpiryDelay, true)
}

func (s *Scheduler) armLifecycle(orderID int64, reminderIn, expiryIn time.Duration, withReminder bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if withReminder {
		if t, ok := s.reminders[orderID]; ok {
			t.Stop()
		}
		s.reminders[orderID] = time.AfterFunc(reminderIn, func() {
			s.fireReminder(orderID)
		})
	}
	if t, ok := s.expiries[orderID]; ok {
		t.Stop()
	}
	s.expiries[orderID] = time.AfterFunc(expiryIn, func() {
		s.fireExpiry(orderID)
	})
}

// CancelLifecycle drops both lifecycle timers after an order is resolved.
func (s *Scheduler) CancelLifecycle(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.reminders[orderID]; ok {
		t.Stop()
		delete(s.reminders, orderID)
	}
	if t, ok := s.expiries[orderID]; ok {
		t.Stop()
		delete(s.expiries, orderID)
	}
}

func (s *Scheduler) fireProcessing(orderID int64) {
	s.mu.Lock()
	delete(s.processing, orderID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The conditional write re-checks the precondition: if someone resolved
	// the order since the timer armed, this is a no-op.
	ok, err := s.machine.RevertStaleProcessing(ctx, orderID)
	if err != nil {
		s.logger.Error("processing timeout revert failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("load order after revert failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	s.notifier.OrderReverted(ctx, o)
}

func (s *Scheduler) fireReminder(orderID int64) {
	s.mu.Lock()
	delete(s.reminders, orderID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("load order for reminder failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	if o.Status == nil || o.Status.State != domain.StateInitiated {
		return
	}
	s.notifier.OrderReminder(ctx, o)
}

func (s *Scheduler) fireExpiry(orderID int64) {
	s.mu.Lock()
	delete(s.expiries, orderID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, err := s.machine.ExpireInitiated(ctx, orderID)
	if err != nil {
		s.logger.Error("order expiry failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("load order after expiry failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	s.notifier.OrderExpired(ctx, o)
}

// Recover rebuilds timer state from the database after a process start.
// In-memory timers died with the previous process, so:
//   - every order still recorded processing is stale by definition and is
//     eagerly reverted to initiated;
//   - every initiated order older than the expiry delay is canceled now;
//   - every other initiated order gets its timers re-armed with the
//     remaining (age-adjusted) delays. The reminder is skipped when its
//     moment already passed, so an owner is never nudged twice.
func (s *Scheduler) Recover(ctx context.Context) error {
	var errs error

	stale, err := s.orders.ListOrdersByState(ctx, domain.StateProcessing)
	if err != nil {
		return err
	}
	for _, o := range stale {
		ok, err := s.machine.RevertStaleProcessing(ctx, o.ID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			s.notifier.OrderReverted(ctx, o)
		}
	}

	pending, err := s.orders.ListOrdersByState(ctx, domain.StateInitiated)
	if err != nil {
		return multierr.Append(errs, err)
	}

	now := time.Now()
	recovered, expired := 0, 0
	for _, o := range pending {
		age := now.Sub(o.CreatedAt)

		if age >= s.timers.ExpiryDelay {
			ok, err := s.machine.ExpireInitiated(ctx, o.ID)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if ok {
				s.notifier.OrderExpired(ctx, o)
				expired++
			}
			continue
		}

		withReminder := age < s.timers.ReminderDelay
		reminderIn := s.timers.ReminderDelay - age
		s.armLifecycle(o.ID, reminderIn, s.timers.ExpiryDelay-age, withReminder)
		recovered++
	}

	s.logger.Info("recovery sweep finished",
		zap.Int("reverted", len(stale)),
		zap.Int("expired", expired),
		zap.Int("rearmed", recovered))

	return errs
}

// Stats reports how many timers are currently armed (monitoring only).
func (s *Scheduler) Stats() (processing, reminders, expiries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processing), len(s.reminders), len(s.expiries)
}

// Stop cancels all outstanding timers. New arms become no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.processing {
		t.Stop()
		delete(s.processing, id)
	}
	for id, t := range s.reminders {
		t.Stop()
		delete(s.reminders, id)
	}
	for id, t := range s.expiries {
		t.Stop()
		delete(s.expiries, id)
	}
}

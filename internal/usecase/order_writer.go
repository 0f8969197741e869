package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
)

// orderLocks serialises mutations of one order inside this process. Other
// processes are held off by the OrderLocker, and the revision compare-and-swap
// in the repository rejects any write that still slips through.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*orderLock)}
}

func (l *orderLocks) lock(orderID string) func() {
	l.mu.Lock()
	ol, ok := l.locks[orderID]
	if !ok {
		ol = &orderLock{}
		l.locks[orderID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, orderID)
		}
		l.mu.Unlock()
	}
}

// OrderWriter is the single write path for orders. Every usecase that mutates an
// order goes through Mutate so that read, validate and write happen under one
// per-order lock and commit with a revision check.
type OrderWriter struct {
	orderRepo domain.OrderRepository
	txManager domain.TransactionManager
	locker    domain.OrderLocker
	notifier  domain.Notifier
	locks     *orderLocks
	now       func() time.Time
}

// NewOrderWriter builds the write path. locker may be nil when only one process
// writes orders.
func NewOrderWriter(repo domain.OrderRepository, txManager domain.TransactionManager, locker domain.OrderLocker, notifier domain.Notifier) *OrderWriter {
	return &OrderWriter{
		orderRepo: repo,
		txManager: txManager,
		locker:    locker,
		notifier:  notifier,
		locks:     newOrderLocks(),
		now:       time.Now,
	}
}

// Change describes what a mutation did, for the audit trail.
type Change struct {
	Reason string
}

// MutateFunc receives a private copy of the order. It may call remote systems
// before changing the copy; returning an error discards the copy untouched.
// Returning a nil *Change means "nothing to persist".
type MutateFunc func(ctx context.Context, order *domain.Order) (*Change, error)

// Mutate loads the order, runs fn and commits the result with its history row.
// The stored order is returned whether or not fn changed anything. The status
// event goes out after the order's locks are released.
func (w *OrderWriter) Mutate(ctx context.Context, orderID, actorID string, fn MutateFunc) (*domain.Order, error) {
	before, after, err := w.mutateLocked(ctx, orderID, actorID, fn)
	if err != nil {
		return nil, err
	}
	if before != nil {
		w.emit(ctx, actorID, before, after)
	}
	return after, nil
}

// mutateLocked holds both locks across read, fn and commit. before is nil when
// fn had nothing to persist.
func (w *OrderWriter) mutateLocked(ctx context.Context, orderID, actorID string, fn MutateFunc) (before, after *domain.Order, err error) {
	unlock := w.locks.lock(orderID)
	defer unlock()

	if w.locker != nil {
		release, err := w.locker.LockOrder(ctx, orderID)
		if err != nil {
			return nil, nil, err
		}
		defer release()
	}

	current, err := w.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	working := current.Clone()
	change, err := fn(ctx, working)
	if err != nil {
		return nil, nil, err
	}
	if change == nil {
		return nil, current, nil
	}

	if err := w.commit(ctx, current, working, change, actorID); err != nil {
		return nil, nil, err
	}
	return current, working, nil
}

func (w *OrderWriter) commit(ctx context.Context, before, after *domain.Order, change *Change, actorID string) error {
	reason := change.Reason
	if reason == "" {
		reason = fmt.Sprintf("System: Status changed from %s to %s", before.Status, after.Status)
	}
	prev := string(before.Status)
	history := &domain.OrderHistory{
		OrderID:        after.ID,
		PreviousStatus: &prev,
		NewStatus:      string(after.Status),
		Reason:         &reason,
	}
	if actorID != "" {
		history.CreatedBy = &actorID
	}

	return w.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := w.orderRepo.Update(txCtx, after, before.Revision); err != nil {
			return err
		}
		if err := w.orderRepo.CreateOrderHistory(txCtx, history); err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
		return nil
	})
}

// emit notifies the customer after a committed status change. Failures are logged only.
func (w *OrderWriter) emit(ctx context.Context, actorID string, before, after *domain.Order) {
	if before.Status == after.Status {
		return
	}
	logger.OrderTransition(ctx, after.ID, string(before.Status), string(after.Status), actorID)
	if w.notifier == nil {
		return
	}
	event := domain.StatusEvent{
		OrderID:        after.ID,
		PreviousStatus: before.Status,
		NewStatus:      after.Status,
		TrackingCode:   after.TrackingCode,
		Courier:        after.Courier,
		CustomerName:   after.CustomerName,
		CustomerPhone:  after.ShippingAddress.Phone,
		OccurredAt:     w.now(),
	}
	if err := w.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		log := logger.ForOrder(ctx, after.ID)
		log.Warn().Err(err).
			Str("status", string(after.Status)).
			Msg("status notification failed")
	}
}

// isStale reports a lost compare-and-swap.
func isStale(err error) bool {
	return errors.Is(err, domain.ErrStaleRevision)
}

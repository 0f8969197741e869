package memory

import (
	"context"
	"sync"
)

// OrderLocker is a keyed mutex shared by every OrderWriter built over the same
// store, standing in for the database advisory lock.
type OrderLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewOrderLocker() *OrderLocker {
	return &OrderLocker{locks: make(map[string]*keyedLock)}
}

// LockOrder blocks until the order is free or ctx is done.
func (l *OrderLocker) LockOrder(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[orderID]
	if !ok {
		k = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(orderID, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.drop(orderID, k)
		})
	}, nil
}

func (l *OrderLocker) drop(orderID string, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, orderID)
	}
}

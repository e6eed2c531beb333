package tracker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// shipmentLocks serializes writers per shipment. Entries are created lazily
// and removed as soon as the last interested goroutine leaves, so idle
// shipments cost nothing. The token channel (вместо sync.Mutex) позволяет
// снять ожидание по дедлайну вызывающего.
type shipmentLocks struct {
	mu sync.Mutex
	m  map[uint64]*lockEntry
}

type lockEntry struct {
	ch   chan struct{} // capacity 1; owning the token = owning the lock
	refs int
}

func newShipmentLocks() *shipmentLocks {
	return &shipmentLocks{m: make(map[uint64]*lockEntry)}
}

// acquire blocks until the shipment's lock is free or ctx is done. On success
// the returned release func must be called exactly once.
func (l *shipmentLocks) acquire(ctx context.Context, id uint64) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.unref(id, e)
		}, nil
	case <-ctx.Done():
		l.unref(id, e)
		return nil, errors.Wrap(ErrTimeout, ctx.Err().Error())
	}
}

func (l *shipmentLocks) unref(id uint64, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, id)
	}
	l.mu.Unlock()
}

// size is test-only: the number of currently tracked shipments.
func (l *shipmentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

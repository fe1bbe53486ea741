package bot

import (
	"context"
	"sync"
)

// turnLocks serializes the events of one user. Events of different users
// run in parallel.
type turnLocks struct {
	mu    sync.Mutex
	turns map[int64]*turn
}

type turn struct {
	sem  chan struct{}
	refs int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{turns: make(map[int64]*turn)}
}

// acquire blocks until userID's previous event is done or ctx ends. The
// returned release must be called exactly once.
func (l *turnLocks) acquire(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	t, ok := l.turns[userID]
	if !ok {
		t = &turn{sem: make(chan struct{}, 1)}
		l.turns[userID] = t
	}
	t.refs++
	l.mu.Unlock()

	select {
	case t.sem <- struct{}{}:
		return func() {
			<-t.sem
			l.unref(userID, t)
		}, nil
	case <-ctx.Done():
		l.unref(userID, t)
		return nil, ctx.Err()
	}
}

func (l *turnLocks) unref(userID int64, t *turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.refs--
	if t.refs == 0 {
		delete(l.turns, userID)
	}
}

func (l *turnLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

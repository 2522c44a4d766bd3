package conversation

import (
	"context"
	"sync"
)

// sessionLocks serialises turns per session. Entries are dropped once no
// caller holds or waits on them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session is free or ctx is done.
func (l *sessionLocks) acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.locks[sessionID]
	if !ok {
		s = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.release(sessionID, s)
		}, nil
	case <-ctx.Done():
		l.release(sessionID, s)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(sessionID string, s *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.locks, sessionID)
	}
}

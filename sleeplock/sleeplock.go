// Package sleeplock provides a lock whose waiters sleep instead of spin.
//
// It guards data that is held across slow operations such as disk I/O, where
// busy-waiting would waste the processor. A waiter blocks on a condition
// variable and is woken by Release. The internal mutex is held only long
// enough to update the lock's state, never while the lock is held.
package sleeplock

import (
	"sync"
)

type Lock struct {
	mu      *sync.Mutex
	cond    *sync.Cond
	held    bool
	waiters uint64
	name    string
}

func MkLock(name string) *Lock {
	mu := new(sync.Mutex)
	return &Lock{
		mu:   mu,
		cond: sync.NewCond(mu),
		name: name,
	}
}

func (l *Lock) Acquire() {
	l.mu.Lock()
	for l.held {
		l.waiters += 1
		l.cond.Wait()
		l.waiters -= 1
	}
	l.held = true
	l.mu.Unlock()
}

// TryAcquire takes the lock only if it is free.
func (l *Lock) TryAcquire() bool {
	l.mu.Lock()
	ok := !l.held
	if ok {
		l.held = true
	}
	l.mu.Unlock()
	return ok
}

// Release wakes one waiter, if any. Releasing a free lock panics.
func (l *Lock) Release() {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		panic("releasesleep: " + l.name)
	}
	l.held = false
	if l.waiters > 0 {
		l.cond.Signal()
	}
	l.mu.Unlock()
}

// Holding reports whether the lock is held. Go has no notion of the calling
// thread, so this cannot tell the holder from another caller; it catches use
// of a lock nobody acquired.
func (l *Lock) Holding() bool {
	l.mu.Lock()
	h := l.held
	l.mu.Unlock()
	return h
}

// Waiters reports how many callers are blocked in Acquire.
func (l *Lock) Waiters() uint64 {
	l.mu.Lock()
	n := l.waiters
	l.mu.Unlock()
	return n
}

func (l *Lock) Name() string {
	return l.name
}

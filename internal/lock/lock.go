// Package lock provides per-scope mutual exclusion for renumbering writes.
// A scope is a board (for its lists) or a list (for its cards).
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrTimeout is returned when a scope could not be acquired before the
// caller's deadline.
var ErrTimeout = errors.New("timed out waiting for scope lock")

// Locker acquires exclusive access to a set of scopes. The returned function
// releases all of them.
type Locker interface {
	Lock(ctx context.Context, scopes ...string) (func(), error)
}

// normalize sorts and de-duplicates scopes so that every caller acquires
// them in the same order.
func normalize(scopes []string) []string {
	out := slices.Clone(scopes)
	slices.Sort(out)
	return slices.Compact(out)
}

// Local serializes access within a single process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, scopes ...string) (func(), error) {
	keys := normalize(scopes)
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}
	for _, key := range keys {
		if err := l.acquire(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		s.refs--
		if s.refs == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
		return ErrTimeout
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	<-s.ch
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

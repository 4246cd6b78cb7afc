/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dbpool

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

type pushResult int

const (
	pushed pushResult = iota
	pushDuplicate
	pushClosed
)

// idleList is the set of idle connections, ordered by return time: the
// front holds the most recently returned connection and the back the
// least recently returned one.
type idleList struct {
	mu    sync.Mutex
	conns deque.Deque[*Pooled]
	// ready is closed and replaced every time a connection is pushed, waking
	// everybody blocked in pop.
	ready  chan struct{}
	closed bool
}

func (l *idleList) init() {
	l.ready = make(chan struct{})
}

func (l *idleList) broadcastLocked() {
	close(l.ready)
	l.ready = make(chan struct{})
}

// pushFront adds conn as the most recently returned connection. It refuses
// connections that are already present, and everything once closed.
func (l *idleList) pushFront(conn *Pooled) pushResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return pushClosed
	}
	if l.conns.Index(func(c *Pooled) bool { return c == conn }) >= 0 {
		return pushDuplicate
	}
	l.conns.PushFront(conn)
	l.broadcastLocked()
	return pushed
}

// pop takes the most recently returned connection, waiting up to wait for
// one to show up. It returns (nil, nil) on timeout, the context error if ctx
// is done first, and ErrPoolClosed once the list has been closed.
func (l *idleList) pop(ctx context.Context, wait time.Duration) (*Pooled, error) {
	var timer *time.Timer
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if l.conns.Len() > 0 {
			conn := l.conns.PopFront()
			l.mu.Unlock()
			return conn, nil
		}
		ready := l.ready
		l.mu.Unlock()

		if wait <= 0 {
			return nil, nil
		}
		if timer == nil {
			timer = time.NewTimer(wait)
			defer timer.Stop()
		}

		select {
		case <-ready:
		case <-timer.C:
			// one last look before giving up
			wait = 0
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// remove takes conn out of the list if it is still there.
func (l *idleList) remove(conn *Pooled) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.conns.Index(func(c *Pooled) bool { return c == conn }); i >= 0 {
		l.conns.Remove(i)
		return true
	}
	return false
}

// removeFromBack walks the list from the least recently returned end and
// removes every connection for which evict returns true.
func (l *idleList) removeFromBack(evict func(conn *Pooled) bool) []*Pooled {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []*Pooled
	for i := l.conns.Len() - 1; i >= 0; i-- {
		if conn := l.conns.At(i); evict(conn) {
			l.conns.Remove(i)
			removed = append(removed, conn)
		}
	}
	return removed
}

// drain empties the list.
func (l *idleList) drain() []*Pooled {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Pooled, 0, l.conns.Len())
	for l.conns.Len() > 0 {
		out = append(out, l.conns.PopFront())
	}
	return out
}

// close stops the list from accepting connections and wakes all waiters.
// Connections already in the list stay there until drained.
func (l *idleList) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		l.broadcastLocked()
	}
}

func (l *idleList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns.Len()
}

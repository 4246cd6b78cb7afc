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
	"sync/atomic"
	"time"
)

var monotonicRoot = time.Now()

// monotonicNow returns the time elapsed since process start, read from the
// monotonic clock so that wall clock jumps never affect idle accounting.
func monotonicNow() time.Duration {
	return time.Since(monotonicRoot)
}

type timestamp struct {
	mono atomic.Int64
}

func (t *timestamp) set(now time.Duration) {
	t.mono.Store(int64(now))
}

func (t *timestamp) get() time.Duration {
	return time.Duration(t.mono.Load())
}

func (t *timestamp) elapsed() time.Duration {
	return monotonicNow() - t.get()
}

// ReleaseKind tells the pool how a borrowed connection came back.
type ReleaseKind int

const (
	// ReleaseNormal means the caller is done with a healthy connection.
	ReleaseNormal ReleaseKind = iota
	// ReleaseError means the connection hit a protocol error and must not
	// be reused.
	ReleaseError
)

func (k ReleaseKind) String() string {
	switch k {
	case ReleaseNormal:
		return "normal"
	case ReleaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Pooled wraps a Connection with the bookkeeping the pool needs.
// At any instant a Pooled is idle in its pool, borrowed by one caller, or
// being destroyed.
type Pooled struct {
	// Conn is the underlying connection.
	Conn Connection

	// pool is nil for connections opened outside the pool by GetAs.
	pool *Pool

	// lastReturned is when the connection was last returned or checked out.
	lastReturned timestamp

	borrowed atomic.Bool
	// failed is set exactly once, by whichever path destroys the connection.
	failed atomic.Bool
}

// Recycle hands the connection back to its pool. Calling it more than once
// is harmless.
func (p *Pooled) Recycle() {
	p.Release(ReleaseNormal, nil)
}

// Fail reports that the connection is broken. The pool discards it and asks
// for a replacement.
func (p *Pooled) Fail(err error) {
	p.Release(ReleaseError, err)
}

// Release notifies the pool that the caller is done with the connection.
func (p *Pooled) Release(kind ReleaseKind, err error) {
	if p.pool == nil {
		if !p.failed.CompareAndSwap(false, true) {
			return
		}
		if kind == ReleaseError {
			p.Conn.ForceAbort()
		} else {
			p.Conn.Close()
		}
		return
	}
	p.pool.release(p, kind, err)
}

// IsPooled reports whether the connection belongs to a pool.
func (p *Pooled) IsPooled() bool {
	return p.pool != nil
}

// IdleTime returns how long ago the connection was last returned or
// checked out.
func (p *Pooled) IdleTime() time.Duration {
	return p.lastReturned.elapsed()
}

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

/*
Package dbpool pools database connections per configuration.

A Pool lends out previously established connections instead of paying for a
new handshake on every request. It keeps at most MaxSize connections alive,
refills towards MinSize in the background, evicts connections that have
been idle too long, and survives broken connections without surfacing them
to callers.

Pools are obtained from a Registry, which shares one pool between all users
of the same Config:

	pool, err := registry.Retrieve(cfg)
	...
	conn, err := pool.Get(ctx)
	if err != nil {
		return err
	}
	defer conn.Recycle()

A caller that sees a protocol error on a connection reports it with
conn.Fail(err) instead of Recycle, and the pool replaces the connection.
*/
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vitess.io/dbpool/go/sync2"
	"vitess.io/dbpool/go/timer"
	"vitess.io/dbpool/go/vt/log"
	"vitess.io/dbpool/go/vt/vterrors"
)

const (
	// warmPoolSize is the pool size above which the fast path does not wait
	// at all for a connection that is being returned.
	warmPoolSize = 4
	// coldPollWait is how long the fast path waits on a cold pool.
	coldPollWait = 50 * time.Microsecond

	validationTimeout = 10 * time.Second
	drainPollInterval = 10 * time.Millisecond
)

// creatorStopTimeout bounds how long Close waits for a Connect that ignores
// its context.
var creatorStopTimeout = 10 * time.Second

var poolSeq atomic.Int64

// Pool is a pool of connections for one Config.
type Pool struct {
	config    Config
	name      string
	minSize   int
	connector Connector

	idle    idleList
	total   atomic.Int64
	pending atomic.Int64
	closing atomic.Bool

	// growth carries requests to open one more connection; it is drained by
	// the creator goroutine.
	growth  chan struct{}
	creator sync2.ServiceManager
	// ctx is cancelled on Close to abort connection attempts in flight.
	ctx    context.Context
	cancel context.CancelFunc

	sweep *timer.Handle

	// live holds every connection counted in total, idle or borrowed.
	liveMu sync.Mutex
	live   map[*Pooled]struct{}

	registry   *Registry
	registerer prometheus.Registerer
	collector  prometheus.Collector

	Metrics Metrics
}

// newPool builds a pool and primes it with MinSize connections. scheduler,
// registry and registerer are optional.
func newPool(cfg Config, connector Connector, scheduler *timer.Scheduler, registry *Registry, registerer prometheus.Registerer) *Pool {
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("dbpool-%d", poolSeq.Add(1))
	}

	pool := &Pool{
		config:     cfg,
		name:       name,
		minSize:    cfg.minSize(),
		connector:  connector,
		growth:     make(chan struct{}, cfg.MaxSize),
		live:       make(map[*Pooled]struct{}, cfg.MaxSize),
		registry:   registry,
		registerer: registerer,
	}
	pool.idle.init()
	pool.ctx, pool.cancel = context.WithCancel(context.Background())

	if scheduler != nil {
		pool.sweep = scheduler.ScheduleEvery(cfg.sweepInterval(), pool.evictIdle)
	}
	pool.creator.Go(pool.runCreator)

	if registerer != nil {
		collector := newCollector(pool)
		if err := registerer.Register(collector); err != nil {
			log.WarnS("cannot register pool metrics", "pool", name, "err", err)
		} else {
			pool.collector = collector
		}
	}

	for i := 0; i < pool.minSize; i++ {
		ctx, cancel := context.WithTimeout(pool.ctx, cfg.ConnectTimeout)
		err := pool.addConnection(ctx)
		cancel()
		if err != nil {
			log.WarnS("cannot prime pool", "pool", name, "created", i, "wanted", pool.minSize, "err", err)
			break
		}
	}

	log.InfoS("pool created", "pool", name, "address", cfg.Address, "min", pool.minSize, "max", cfg.MaxSize, "total", pool.total.Load())
	return pool
}

// Get returns a connection from the pool, waiting up to ConnectTimeout for
// one to become available. The caller must hand it back with Recycle or
// Fail.
//
// Idle connections that fail validation are discarded transparently; the
// caller only ever sees ErrTimeout, ErrCancelled or ErrPoolClosed.
func (pool *Pool) Get(ctx context.Context) (*Pooled, error) {
	if pool.closing.Load() {
		return nil, ErrPoolClosed
	}

	pool.pending.Add(1)
	defer pool.pending.Add(-1)

	start := time.Now()
	deadline := start.Add(pool.config.ConnectTimeout)
	waited := false

	for {
		conn, err := pool.idle.pop(ctx, pool.fastPollWait())
		if err != nil {
			return nil, pool.waitError(err)
		}

		if conn == nil {
			pool.requestGrowth()
			waited = true

			if remaining := time.Until(deadline); remaining > 0 {
				conn, err = pool.idle.pop(ctx, remaining)
				if err != nil {
					return nil, pool.waitError(err)
				}
			}
			if conn == nil {
				pool.Metrics.timeouts.Add(1)
				return nil, pool.timeoutError()
			}
		}

		if pool.validate(ctx, conn) {
			if conn.failed.Load() {
				// aborted by Close while we were validating it
				continue
			}
			conn.lastReturned.set(monotonicNow())
			conn.borrowed.Store(true)
			if waited {
				pool.recordWait(start)
			}
			return conn, nil
		}

		pool.Metrics.validationFailed.Add(1)
		log.InfoS("discarding idle connection that failed validation", "pool", pool.name, "idle", conn.IdleTime())
		pool.destroy(conn, true)
		pool.requestGrowth()
	}
}

// GetAs returns a connection opened with the given identity. If it is the
// pool's own identity this is the same as Get; otherwise a private
// connection is opened outside of the pool, so that callers switching
// identities cannot drain the shared connections. Recycling such a
// connection closes it.
func (pool *Pool) GetAs(ctx context.Context, id Identity) (*Pooled, error) {
	if id == pool.config.identity() {
		return pool.Get(ctx)
	}
	if pool.closing.Load() {
		return nil, ErrPoolClosed
	}

	ctx, cancel := context.WithTimeout(ctx, pool.config.ConnectTimeout)
	defer cancel()

	conn, err := pool.connector.Connect(ctx, pool.config, id)
	if err != nil {
		return nil, vterrors.Wrapf(err, "pool %s: cannot open connection for user %q", pool.name, id.User)
	}
	unpooled := &Pooled{Conn: conn}
	unpooled.lastReturned.set(monotonicNow())
	unpooled.borrowed.Store(true)
	return unpooled, nil
}

func (pool *Pool) fastPollWait() time.Duration {
	if pool.total.Load() > warmPoolSize {
		return 0
	}
	return coldPollWait
}

func (pool *Pool) validate(ctx context.Context, conn *Pooled) bool {
	if conn.lastReturned.elapsed() <= pool.config.ValidationGrace {
		return true
	}
	// a caller giving up must not make a healthy connection look dead
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), validationTimeout)
	defer cancel()
	return conn.Conn.IsValid(vctx)
}

func (pool *Pool) waitError(err error) error {
	switch {
	case errors.Is(err, ErrPoolClosed):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		pool.Metrics.timeouts.Add(1)
		return pool.timeoutError()
	default:
		return vterrors.Wrapf(ErrCancelled, "pool %s", pool.name)
	}
}

func (pool *Pool) timeoutError() error {
	return vterrors.Wrapf(ErrTimeout, "pool %s: no connection available within %v (total=%d, active=%d, idle=%d, pending=%d)",
		pool.name, pool.config.ConnectTimeout, pool.Total(), pool.Active(), pool.Idle(), pool.Pending())
}

func (pool *Pool) recordWait(start time.Time) {
	pool.Metrics.waitCount.Add(1)
	pool.Metrics.waitTime.Add(time.Since(start).Nanoseconds())
}

// release is the single entry point for connections coming back from
// callers.
func (pool *Pool) release(conn *Pooled, kind ReleaseKind, cause error) {
	if kind == ReleaseError {
		conn.borrowed.Store(false)
		pool.Metrics.protocolErrors.Add(1)
		pool.discard(conn, cause)
		return
	}

	if !conn.borrowed.CompareAndSwap(true, false) {
		// not checked out: a duplicate or late event
		return
	}
	if pool.closing.Load() {
		pool.destroy(conn, false)
		return
	}

	ctx, cancel := context.WithTimeout(pool.ctx, pool.config.ConnectTimeout)
	err := conn.Conn.Reset(ctx)
	cancel()
	if err != nil {
		pool.Metrics.resetFailed.Add(1)
		pool.discard(conn, vterrors.Wrap(err, "reset failed"))
		return
	}

	conn.lastReturned.set(monotonicNow())
	if pool.idle.pushFront(conn) == pushClosed {
		pool.destroy(conn, false)
	}
}

// discard drops a connection that can no longer be trusted and asks for a
// replacement.
func (pool *Pool) discard(conn *Pooled, cause error) {
	pool.idle.remove(conn)
	if pool.destroy(conn, true) {
		log.WarnS("discarding broken connection", "pool", pool.name, "err", cause)
	}
	pool.requestGrowth()
}

// destroy closes a connection and stops counting it. Only the first call
// for a given connection has any effect.
func (pool *Pool) destroy(conn *Pooled, abort bool) bool {
	if !conn.failed.CompareAndSwap(false, true) {
		return false
	}

	pool.liveMu.Lock()
	delete(pool.live, conn)
	pool.liveMu.Unlock()
	pool.total.Add(-1)

	if abort {
		conn.Conn.ForceAbort()
	} else {
		conn.Conn.Close()
	}
	return true
}

// Close shuts the pool down. Idle connections are closed right away;
// borrowed ones get DrainTimeout to come back before they are aborted.
// Close is idempotent.
func (pool *Pool) Close() {
	if !pool.closing.CompareAndSwap(false, true) {
		return
	}
	log.InfoS("closing pool", "pool", pool.name, "total", pool.total.Load(), "idle", pool.idle.len())

	if pool.registry != nil {
		pool.registry.remove(pool)
	}

	pool.sweep.Cancel()
	pool.cancel()
	if !pool.creator.StopTimeout(creatorStopTimeout) {
		log.WarnS("connection creator did not stop in time", "pool", pool.name)
	}

	// no more pushes; waiters in Get wake up with ErrPoolClosed
	pool.idle.close()

	deadline := time.Now().Add(pool.config.drainTimeout())
	for {
		for _, conn := range pool.idle.drain() {
			pool.destroy(conn, false)
		}
		if pool.total.Load() <= 0 || !time.Now().Before(deadline) {
			break
		}
		time.Sleep(drainPollInterval)
	}

	pool.liveMu.Lock()
	outstanding := make([]*Pooled, 0, len(pool.live))
	for conn := range pool.live {
		outstanding = append(outstanding, conn)
	}
	pool.liveMu.Unlock()

	if len(outstanding) > 0 {
		log.WarnS("aborting connections still in use", "pool", pool.name, "count", len(outstanding))
	}
	for _, conn := range outstanding {
		pool.destroy(conn, true)
	}

	if pool.collector != nil {
		pool.registerer.Unregister(pool.collector)
	}
}

// IsClosed returns true once Close has been called.
func (pool *Pool) IsClosed() bool {
	return pool.closing.Load()
}

// Name returns the pool's label.
func (pool *Pool) Name() string {
	return pool.name
}

// Config returns the configuration the pool was created with.
func (pool *Pool) Config() Config {
	return pool.config
}

// Total returns the number of live connections, idle or borrowed.
func (pool *Pool) Total() int64 {
	return pool.total.Load()
}

// Idle returns the number of idle connections.
func (pool *Pool) Idle() int64 {
	return int64(pool.idle.len())
}

// Active returns the number of borrowed connections.
func (pool *Pool) Active() int64 {
	return max(pool.Total()-pool.Idle(), 0)
}

// Pending returns the number of callers waiting in Get.
func (pool *Pool) Pending() int64 {
	return pool.pending.Load()
}

// StatsJSON returns the pool stats as a JSON object.
func (pool *Pool) StatsJSON() string {
	return fmt.Sprintf(`{"Name": %q, "MaxSize": %v, "MinSize": %v, "Total": %v, "Active": %v, "Idle": %v, "Pending": %v, "Created": %v, "Evicted": %v, "WaitCount": %v, "WaitTime": %v, "Timeouts": %v}`,
		pool.name,
		pool.config.MaxSize,
		pool.minSize,
		pool.Total(),
		pool.Active(),
		pool.Idle(),
		pool.Pending(),
		pool.Metrics.Created(),
		pool.Metrics.Evicted(),
		pool.Metrics.WaitCount(),
		pool.Metrics.WaitTime().Nanoseconds(),
		pool.Metrics.Timeouts(),
	)
}

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

	"vitess.io/dbpool/go/sync2"
	"vitess.io/dbpool/go/vt/log"
	"vitess.io/dbpool/go/vt/vterrors"
)

// requestGrowth hints that the pool may need another connection. It never
// blocks: when the queue of hints is full the hint is dropped, which is
// fine because the creator re-checks the need for every hint it drains.
func (pool *Pool) requestGrowth() {
	if pool.closing.Load() || pool.total.Load() >= int64(pool.config.MaxSize) {
		return
	}
	select {
	case pool.growth <- struct{}{}:
	default:
	}
}

// needsGrowth is true while the pool is under its floor, or callers are
// waiting, and there is room for one more connection.
func (pool *Pool) needsGrowth() bool {
	if pool.closing.Load() {
		return false
	}
	total := pool.total.Load()
	return (total < int64(pool.minSize) || pool.pending.Load() > 0) && total < int64(pool.config.MaxSize)
}

// runCreator is the only goroutine that opens connections after the pool
// has been primed, so a burst of callers never turns into a burst of
// handshakes against the server.
func (pool *Pool) runCreator(svm *sync2.ServiceManager) {
	shutdown := svm.ShuttingDown()
	for {
		select {
		case <-shutdown:
			return
		case <-pool.growth:
			if !pool.needsGrowth() {
				continue
			}
			ctx, cancel := context.WithTimeout(pool.ctx, pool.config.ConnectTimeout)
			err := pool.addConnection(ctx)
			cancel()
			if err != nil {
				log.WarnS("cannot grow pool", "pool", pool.name, "total", pool.total.Load(), "err", err)
			}
		}
	}
}

// addConnection opens a connection and adds it to the front of the idle
// list. If the pool filled up or started closing while the connection was
// being opened, the new connection is closed instead.
func (pool *Pool) addConnection(ctx context.Context) error {
	c, err := pool.connector.Connect(ctx, pool.config, pool.config.identity())
	if err != nil {
		pool.Metrics.createFailed.Add(1)
		return vterrors.Wrapf(err, "pool %s: cannot open connection to %s", pool.name, pool.config.Address)
	}

	conn := &Pooled{Conn: c, pool: pool}
	conn.lastReturned.set(monotonicNow())

	for {
		total := pool.total.Load()
		if pool.closing.Load() || total >= int64(pool.config.MaxSize) {
			conn.failed.Store(true)
			c.Close()
			return nil
		}
		if pool.total.CompareAndSwap(total, total+1) {
			break
		}
	}
	pool.Metrics.created.Add(1)

	// only counted connections are tracked, so Close never destroys one
	// that total does not include
	pool.liveMu.Lock()
	pool.live[conn] = struct{}{}
	pool.liveMu.Unlock()

	if pool.idle.pushFront(conn) == pushClosed {
		pool.destroy(conn, false)
	}
	return nil
}

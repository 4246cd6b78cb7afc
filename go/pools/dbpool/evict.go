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
	"vitess.io/dbpool/go/vt/log"
)

// evictIdle runs on the registry's scheduler. It drops idle connections
// that the server is about to time out, and connections idle longer than
// MaxIdle as long as that does not take the pool below its floor.
func (pool *Pool) evictIdle() {
	if pool.closing.Load() {
		return
	}

	now := monotonicNow()
	margin := pool.config.serverIdleMargin()
	maxIdle := pool.config.MaxIdle
	floor := int64(pool.minSize)
	total := pool.total.Load()
	evicted := int64(0)

	victims := pool.idle.removeFromBack(func(conn *Pooled) bool {
		idle := now - conn.lastReturned.get()
		if serverTimeout := conn.Conn.ServerIdleTimeout(); serverTimeout > 0 && idle > serverTimeout-margin {
			evicted++
			return true
		}
		if maxIdle > 0 && idle > maxIdle && total-evicted > floor {
			evicted++
			return true
		}
		return false
	})

	for _, conn := range victims {
		if pool.destroy(conn, false) {
			pool.Metrics.evicted.Add(1)
			log.DebugS("evicted idle connection", "pool", pool.name, "idle", now-conn.lastReturned.get())
		}
		pool.requestGrowth()
	}
}

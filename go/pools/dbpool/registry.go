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
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vitess.io/dbpool/go/timer"
	"vitess.io/dbpool/go/vt/log"
)

const schedulerShutdownTimeout = 5 * time.Second

// Registry shares one Pool between all users of the same Config. It owns
// the scheduler that drives the eviction sweep of every pool; the scheduler
// is started with the first pool and stopped when the last one goes away,
// so a process with no pools runs no pool goroutines.
type Registry struct {
	connector  Connector
	registerer prometheus.Registerer

	// creating collapses concurrent first Retrieves of one Config.
	creating singleflight.Group

	mu        sync.RWMutex
	pools     map[Config]*Pool
	scheduler *timer.Scheduler
	// pending counts pools being primed outside mu.
	pending int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegisterer exports the metrics of every pool through reg. Pools are
// unregistered when they close.
func WithRegisterer(reg prometheus.Registerer) RegistryOption {
	return func(r *Registry) {
		r.registerer = reg
	}
}

// NewRegistry creates a Registry whose pools open connections with
// connector.
func NewRegistry(connector Connector, opts ...RegistryOption) *Registry {
	r := &Registry{
		connector: connector,
		pools:     make(map[Config]*Pool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the pool for cfg, creating it on first use. Creating a
// pool opens its MinSize connections before Retrieve returns; concurrent
// callers asking for the same cfg wait for that and share the pool, while
// lookups of other pools proceed.
func (r *Registry) Retrieve(cfg Config) (*Pool, error) {
	if pool, ok := r.lookup(cfg); ok {
		return pool, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v, _, _ := r.creating.Do(fmt.Sprintf("%#v", cfg), func() (any, error) {
		return r.create(cfg), nil
	})
	return v.(*Pool), nil
}

func (r *Registry) lookup(cfg Config) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[cfg]
	return pool, ok
}

// create builds and primes the pool for cfg without holding r.mu, then
// registers it.
func (r *Registry) create(cfg Config) *Pool {
	r.mu.Lock()
	// check again, a previous flight may have finished in the meantime
	if pool, ok := r.pools[cfg]; ok {
		r.mu.Unlock()
		return pool
	}
	if r.scheduler == nil {
		r.scheduler = timer.NewScheduler()
	}
	scheduler := r.scheduler
	// keeps remove from stopping the scheduler under a pool being primed
	r.pending++
	r.mu.Unlock()

	pool := newPool(cfg, r.connector, scheduler, r, r.registerer)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	r.pools[cfg] = pool
	return pool
}

// remove forgets pool. It is called by Pool.Close.
func (r *Registry) remove(pool *Pool) {
	r.mu.RLock()
	current, ok := r.pools[pool.config]
	r.mu.RUnlock()
	if !ok || current != pool {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pools[pool.config]; !ok || current != pool {
		return
	}
	delete(r.pools, pool.config)

	if len(r.pools) == 0 && r.pending == 0 && r.scheduler != nil {
		r.scheduler.Shutdown(schedulerShutdownTimeout)
		r.scheduler = nil
	}
}

// Pools returns the pools currently registered.
func (r *Registry) Pools() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]*Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}
	return pools
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// CloseAll closes every registered pool.
func (r *Registry) CloseAll() {
	closePools(r.Pools())
}

// CloseByName closes the pools labelled name.
func (r *Registry) CloseByName(name string) {
	var matching []*Pool
	for _, pool := range r.Pools() {
		if pool.Name() == name {
			matching = append(matching, pool)
		}
	}
	closePools(matching)
}

// closePools closes pools concurrently. A pool that panics while closing is
// logged and does not keep the others from closing.
func closePools(pools []*Pool) {
	var g errgroup.Group
	for _, pool := range pools {
		g.Go(func() error {
			defer func() {
				if x := recover(); x != nil {
					log.ErrorS("panic while closing pool", "pool", pool.Name(), "panic", x)
				}
			}()
			pool.Close()
			return nil
		})
	}
	_ = g.Wait()
}

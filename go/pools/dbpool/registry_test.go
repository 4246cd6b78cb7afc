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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/dbpool/go/test/utils"
)

func TestRegistrySharesPools(t *testing.T) {
	utils.LeakCheckContext(t)

	connector := &FakeConnector{}
	registry := NewRegistry(connector)
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(1, 2)

	var wg sync.WaitGroup
	pools := make([]*Pool, 10)
	for i := range pools {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool, err := registry.Retrieve(cfg)
			assert.NoError(t, err)
			pools[i] = pool
		}()
	}
	wg.Wait()

	for _, pool := range pools {
		assert.Same(t, pools[0], pool)
	}
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, connector.Created())

	other := cfg
	other.Database = "vt_other"
	pool, err := registry.Retrieve(other)
	require.NoError(t, err)
	assert.NotSame(t, pools[0], pool)
	assert.Equal(t, 2, registry.Len())
	assert.Len(t, registry.Pools(), 2)
}

func TestRegistryLookupsDoNotWaitForNewPools(t *testing.T) {
	utils.LeakCheckContext(t)

	var (
		fake     = &FakeConnector{}
		entered  = make(chan struct{})
		release  = make(chan struct{})
		slowDial atomic.Int32
	)
	connector := ConnectorFunc(func(ctx context.Context, cfg Config, id Identity) (Connection, error) {
		if cfg.Name == "slow" {
			if slowDial.Add(1) == 1 {
				close(entered)
			}
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return fake.Connect(ctx, cfg, id)
	})
	registry := NewRegistry(connector)
	t.Cleanup(registry.CloseAll)

	fast := testConfig(1, 2)
	fastPool, err := registry.Retrieve(fast)
	require.NoError(t, err)

	slow := testConfig(1, 2)
	slow.Name = "slow"
	slow.ConnectTimeout = 10 * time.Second

	var wg sync.WaitGroup
	var releaseOnce sync.Once
	t.Cleanup(func() {
		releaseOnce.Do(func() { close(release) })
		wg.Wait()
	})

	slowPools := make([]*Pool, 2)
	for i := range slowPools {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool, err := registry.Retrieve(slow)
			assert.NoError(t, err)
			slowPools[i] = pool
		}()
	}

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "slow pool never started connecting")
	}

	start := time.Now()
	pool, err := registry.Retrieve(fast)
	require.NoError(t, err)
	assert.Same(t, fastPool, pool)

	other := fast
	other.Database = "vt_other"
	_, err = registry.Retrieve(other)
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	fastPool.Close()
	assert.Equal(t, 1, registry.Len())
	assert.Less(t, time.Since(start), 2*time.Second)

	releaseOnce.Do(func() { close(release) })
	wg.Wait()

	assert.Same(t, slowPools[0], slowPools[1])
	assert.EqualValues(t, 1, slowDial.Load())
	assert.EqualValues(t, 1, slowPools[0].Total())
	assert.Equal(t, 2, registry.Len())

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	assert.NotNil(t, registry.scheduler)
	assert.Zero(t, registry.pending)
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	utils.LeakCheckContext(t)

	registry := NewRegistry(&FakeConnector{})
	_, err := registry.Retrieve(testConfig(0, 0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, registry.Len())

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	assert.Nil(t, registry.scheduler)
}

func TestRegistrySchedulerLifecycle(t *testing.T) {
	utils.LeakCheckContext(t)

	registry := NewRegistry(&FakeConnector{})
	schedulerTasks := func() int {
		registry.mu.RLock()
		defer registry.mu.RUnlock()
		if registry.scheduler == nil {
			return -1
		}
		return registry.scheduler.Len()
	}
	assert.Equal(t, -1, schedulerTasks())

	a, err := registry.Retrieve(testConfig(1, 1))
	require.NoError(t, err)
	other := testConfig(1, 1)
	other.Name = "other"
	b, err := registry.Retrieve(other)
	require.NoError(t, err)
	assert.Equal(t, 2, schedulerTasks())

	a.Close()
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, schedulerTasks())

	// the last pool going away stops the scheduler goroutine
	b.Close()
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, -1, schedulerTasks())

	// and a new pool starts it again
	c, err := registry.Retrieve(testConfig(1, 1))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 1, schedulerTasks())
	c.Close()
}

func TestRegistryCloseAll(t *testing.T) {
	utils.LeakCheckContext(t)

	connector := &FakeConnector{}
	registry := NewRegistry(connector)

	var pools []*Pool
	for _, name := range []string{"a", "b", "c"} {
		cfg := testConfig(2, 2)
		cfg.Name = name
		pool, err := registry.Retrieve(cfg)
		require.NoError(t, err)
		pools = append(pools, pool)
	}
	require.Equal(t, 6, connector.Open())

	registry.CloseAll()
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 0, connector.Open())
	for _, pool := range pools {
		assert.True(t, pool.IsClosed())
	}

	// closing an empty registry is fine
	registry.CloseAll()
}

func TestRegistryCloseByName(t *testing.T) {
	utils.LeakCheckContext(t)

	registry := NewRegistry(&FakeConnector{})
	t.Cleanup(registry.CloseAll)

	primary := testConfig(1, 1)
	primary.Name = "primary"
	replica := testConfig(1, 1)
	replica.Name = "replica"
	replicaAdmin := replica
	replicaAdmin.User = "vt_admin"

	p, err := registry.Retrieve(primary)
	require.NoError(t, err)
	r1, err := registry.Retrieve(replica)
	require.NoError(t, err)
	r2, err := registry.Retrieve(replicaAdmin)
	require.NoError(t, err)

	registry.CloseByName("replica")
	assert.True(t, r1.IsClosed())
	assert.True(t, r2.IsClosed())
	assert.False(t, p.IsClosed())
	assert.Equal(t, 1, registry.Len())

	registry.CloseByName("nothing")
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryRetrieveAfterClose(t *testing.T) {
	utils.LeakCheckContext(t)

	registry := NewRegistry(&FakeConnector{})
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(1, 1)
	first, err := registry.Retrieve(cfg)
	require.NoError(t, err)
	first.Close()

	second, err := registry.Retrieve(cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.False(t, second.IsClosed())

	// closing the stale pool again must not evict its replacement
	first.Close()
	first.registry.remove(first)
	assert.Equal(t, 1, registry.Len())
}

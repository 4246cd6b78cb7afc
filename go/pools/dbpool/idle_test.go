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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleList() *idleList {
	l := &idleList{}
	l.init()
	return l
}

func TestIdleListLIFO(t *testing.T) {
	l := newIdleList()
	a, b, c := &Pooled{}, &Pooled{}, &Pooled{}

	require.Equal(t, pushed, l.pushFront(a))
	require.Equal(t, pushed, l.pushFront(b))
	require.Equal(t, pushed, l.pushFront(c))
	assert.Equal(t, pushDuplicate, l.pushFront(b))
	assert.Equal(t, 3, l.len())

	for _, want := range []*Pooled{c, b, a} {
		got, err := l.pop(context.Background(), 0)
		require.NoError(t, err)
		assert.Same(t, want, got)
	}

	got, err := l.pop(context.Background(), 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdleListPopWaits(t *testing.T) {
	l := newIdleList()
	conn := &Pooled{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.pushFront(conn)
	}()

	got, err := l.pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, conn, got)
}

func TestIdleListPopTimeout(t *testing.T) {
	l := newIdleList()

	start := time.Now()
	got, err := l.pop(context.Background(), 30*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestIdleListPopContext(t *testing.T) {
	l := newIdleList()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := l.pop(ctx, time.Second)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdleListWakesAllWaiters(t *testing.T) {
	l := newIdleList()

	const waiters = 8
	var wg sync.WaitGroup
	results := make(chan *Pooled, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := l.pop(context.Background(), 2*time.Second)
			if err == nil && conn != nil {
				results <- conn
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < waiters; i++ {
		l.pushFront(&Pooled{})
	}
	wg.Wait()
	close(results)

	seen := make(map[*Pooled]bool)
	for conn := range results {
		assert.False(t, seen[conn], "connection popped twice")
		seen[conn] = true
	}
	assert.Len(t, seen, waiters)
}

func TestIdleListRemove(t *testing.T) {
	l := newIdleList()
	a, b := &Pooled{}, &Pooled{}
	l.pushFront(a)
	l.pushFront(b)

	assert.True(t, l.remove(a))
	assert.False(t, l.remove(a))
	assert.Equal(t, 1, l.len())
}

func TestIdleListRemoveFromBack(t *testing.T) {
	l := newIdleList()
	conns := []*Pooled{{}, {}, {}, {}}
	for _, conn := range conns {
		l.pushFront(conn)
	}

	var visited []*Pooled
	removed := l.removeFromBack(func(conn *Pooled) bool {
		visited = append(visited, conn)
		return conn == conns[0] || conn == conns[2]
	})

	assert.Equal(t, []*Pooled{conns[0], conns[1], conns[2], conns[3]}, visited)
	assert.Equal(t, []*Pooled{conns[0], conns[2]}, removed)
	assert.Equal(t, []*Pooled{conns[3], conns[1]}, l.drain())
	assert.Equal(t, 0, l.len())
}

func TestIdleListClose(t *testing.T) {
	l := newIdleList()
	l.pushFront(&Pooled{})

	errs := make(chan error, 1)
	empty := newIdleList()
	go func() {
		_, err := empty.pop(context.Background(), 5*time.Second)
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	empty.close()
	empty.close()
	assert.ErrorIs(t, <-errs, ErrPoolClosed)

	l.close()
	assert.Equal(t, pushClosed, l.pushFront(&Pooled{}))
	_, err := l.pop(context.Background(), 0)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Len(t, l.drain(), 1)
}

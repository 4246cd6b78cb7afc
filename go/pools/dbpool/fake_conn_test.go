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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type FakeConn struct {
	id       int
	identity Identity

	invalid    atomic.Bool
	failReset  atomic.Bool
	serverIdle time.Duration

	// owner is the id of the goroutine holding the connection, 0 if none.
	owner atomic.Int64

	validations atomic.Int64
	resets      atomic.Int64
	closed      atomic.Bool
	aborted     atomic.Bool
}

var _ Connection = (*FakeConn)(nil)

func (c *FakeConn) IsValid(ctx context.Context) bool {
	c.validations.Add(1)
	return !c.invalid.Load() && ctx.Err() == nil
}

func (c *FakeConn) Reset(ctx context.Context) error {
	c.resets.Add(1)
	if c.failReset.Load() {
		return errors.New("reset: broken pipe")
	}
	return nil
}

func (c *FakeConn) Close() {
	c.closed.Store(true)
}

func (c *FakeConn) ForceAbort() {
	c.aborted.Store(true)
}

func (c *FakeConn) ServerIdleTimeout() time.Duration {
	return c.serverIdle
}

func (c *FakeConn) isOpen() bool {
	return !c.closed.Load() && !c.aborted.Load()
}

// FakeConnector hands out FakeConns and remembers every one of them.
type FakeConnector struct {
	delay      time.Duration
	serverIdle time.Duration
	fail       atomic.Bool

	mu    sync.Mutex
	conns []*FakeConn
}

func (fc *FakeConnector) Connect(ctx context.Context, cfg Config, id Identity) (Connection, error) {
	if fc.delay > 0 {
		select {
		case <-time.After(fc.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fc.fail.Load() {
		return nil, errors.New("dial tcp " + cfg.Address + ": connection refused")
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	conn := &FakeConn{id: len(fc.conns) + 1, identity: id, serverIdle: fc.serverIdle}
	fc.conns = append(fc.conns, conn)
	return conn, nil
}

// Created returns the number of connections opened so far.
func (fc *FakeConnector) Created() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.conns)
}

// Last returns the most recently opened connection.
func (fc *FakeConnector) Last() *FakeConn {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.conns) == 0 {
		return nil
	}
	return fc.conns[len(fc.conns)-1]
}

// Open returns the number of connections that are neither closed nor
// aborted.
func (fc *FakeConnector) Open() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	open := 0
	for _, c := range fc.conns {
		if c.isOpen() {
			open++
		}
	}
	return open
}

func testConfig(minSize, maxSize int) Config {
	return Config{
		Name:            "test",
		Address:         "db.local:3306",
		Database:        "vt_test",
		User:            "vt_app",
		Password:        "secret",
		MinSize:         minSize,
		MaxSize:         maxSize,
		ValidationGrace: time.Second,
		ConnectTimeout:  time.Second,
		DrainTimeout:    100 * time.Millisecond,
	}
}

// newTestPool builds a standalone pool, without scheduler or metrics, and
// closes it when the test ends.
func newTestPool(t testing.TB, cfg Config, connector Connector) *Pool {
	t.Helper()
	require.NoError(t, cfg.Validate())
	pool := newPool(cfg, connector, nil, nil, nil)
	t.Cleanup(pool.Close)
	return pool
}

func fakeOf(conn *Pooled) *FakeConn {
	return conn.Conn.(*FakeConn)
}

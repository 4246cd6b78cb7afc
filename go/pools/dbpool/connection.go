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
	"time"
)

// Connection is the capability the pool needs from a physical connection.
// The pool never looks at how a Connection talks to its server.
type Connection interface {
	// IsValid probes the server; ctx carries the probe deadline.
	IsValid(ctx context.Context) bool
	// Reset clears session-level state before the connection is reused.
	Reset(ctx context.Context) error
	// Close closes the connection gracefully.
	Close()
	// ForceAbort closes the connection without blocking on the server.
	ForceAbort()
	// ServerIdleTimeout is the server's own session timeout, or 0 if it is
	// unknown or unbounded. It is called while the pool holds its idle lock
	// and must not block.
	ServerIdleTimeout() time.Duration
}

// Identity is the set of credentials a connection is opened with.
type Identity struct {
	User     string
	Password string
}

// Connector opens new connections for a pool.
type Connector interface {
	Connect(ctx context.Context, cfg Config, id Identity) (Connection, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, cfg Config, id Identity) (Connection, error)

// Connect calls f(ctx, cfg, id).
func (f ConnectorFunc) Connect(ctx context.Context, cfg Config, id Identity) (Connection, error) {
	return f(ctx, cfg, id)
}

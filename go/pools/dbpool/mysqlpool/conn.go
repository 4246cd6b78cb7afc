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

// Package mysqlpool connects dbpool pools to MySQL servers through
// github.com/go-sql-driver/mysql.
package mysqlpool

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"vitess.io/dbpool/go/pools/dbpool"
	"vitess.io/dbpool/go/vt/log"
	"vitess.io/dbpool/go/vt/vterrors"
)

const waitTimeoutQuery = "SELECT @@session.wait_timeout"

// Connector opens MySQL connections for a pool.
type Connector struct {
	// Params are extra connection attributes, sent as session variables.
	Params map[string]string
	// Dialer opens the network connection; the zero Dialer is used if nil.
	Dialer *net.Dialer
}

var _ dbpool.Connector = (*Connector)(nil)

// NewConnector returns a Connector with default settings.
func NewConnector() *Connector {
	return &Connector{}
}

// Connect opens one MySQL connection and reads the server's session idle
// timeout.
func (c *Connector) Connect(ctx context.Context, cfg dbpool.Config, id dbpool.Identity) (dbpool.Connection, error) {
	mc := mysqlConfig(cfg, id, c.Params)

	var raw net.Conn
	dialer := c.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	mc.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		raw = conn
		return conn, err
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, vterrors.Wrap(err, "invalid mysql configuration")
	}
	dc, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	conn := &Conn{conn: dc, raw: raw}
	conn.waitTimeout, err = queryWaitTimeout(ctx, dc)
	if err != nil {
		// the pool falls back to MaxIdle alone
		log.WarnS("cannot read wait_timeout", "address", cfg.Address, "err", err)
	}
	return conn, nil
}

// mysqlConfig builds the driver configuration for one connection.
func mysqlConfig(cfg dbpool.Config, id dbpool.Identity, params map[string]string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = id.User
	mc.Passwd = id.Password
	mc.Net, mc.Addr = network(cfg.Address)
	mc.DBName = cfg.Database
	mc.Timeout = cfg.ConnectTimeout
	mc.ParseTime = true
	if len(params) > 0 {
		mc.Params = make(map[string]string, len(params))
		for k, v := range params {
			mc.Params[k] = v
		}
	}
	return mc
}

// network splits an address into the network and address the driver dials.
// Absolute paths are unix sockets.
func network(address string) (string, string) {
	if after, ok := strings.CutPrefix(address, "unix:"); ok {
		return "unix", after
	}
	if strings.HasPrefix(address, "/") {
		return "unix", address
	}
	return "tcp", address
}

func queryWaitTimeout(ctx context.Context, conn driver.Conn) (time.Duration, error) {
	queryer, ok := conn.(driver.QueryerContext)
	if !ok {
		return 0, fmt.Errorf("driver connection %T cannot run queries", conn)
	}
	rows, err := queryer.QueryContext(ctx, waitTimeoutQuery, nil)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	dest := make([]driver.Value, len(rows.Columns()))
	if len(dest) != 1 {
		return 0, fmt.Errorf("unexpected %d columns for %q", len(dest), waitTimeoutQuery)
	}
	if err := rows.Next(dest); err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("no rows for %q", waitTimeoutQuery)
		}
		return 0, err
	}
	return parseWaitTimeout(dest[0])
}

// parseWaitTimeout converts a wait_timeout value, in seconds, to a duration.
func parseWaitTimeout(v driver.Value) (time.Duration, error) {
	var seconds int64
	switch v := v.(type) {
	case int64:
		seconds = v
	case uint64:
		seconds = int64(v)
	case []byte:
		return parseWaitTimeout(string(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid wait_timeout %q: %w", v, err)
		}
		seconds = n
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid wait_timeout type %T", v)
	}
	if seconds <= 0 {
		return 0, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// Conn is a pooled MySQL connection.
type Conn struct {
	conn        driver.Conn
	raw         net.Conn
	waitTimeout time.Duration
}

var _ dbpool.Connection = (*Conn)(nil)

// Driver returns the underlying driver connection, for running queries.
func (c *Conn) Driver() driver.Conn {
	return c.conn
}

// IsValid pings the server.
func (c *Conn) IsValid(ctx context.Context) bool {
	if v, ok := c.conn.(driver.Validator); ok && !v.IsValid() {
		return false
	}
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx) == nil
	}
	return true
}

// Reset rolls back any transaction left open by the previous user and
// checks that the connection is still usable.
func (c *Conn) Reset(ctx context.Context) error {
	if e, ok := c.conn.(driver.ExecerContext); ok {
		if _, err := e.ExecContext(ctx, "ROLLBACK", nil); err != nil {
			return err
		}
	}
	if r, ok := c.conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

// Close sends COM_QUIT and closes the connection.
func (c *Conn) Close() {
	if err := c.conn.Close(); err != nil {
		log.DebugS("error closing mysql connection", "err", err)
	}
}

// ForceAbort closes the socket under the driver, so that nothing waits on
// the server.
func (c *Conn) ForceAbort() {
	if c.raw != nil {
		c.raw.Close()
	}
	c.conn.Close()
}

// ServerIdleTimeout returns the session wait_timeout read at connect time.
func (c *Conn) ServerIdleTimeout() time.Duration {
	return c.waitTimeout
}

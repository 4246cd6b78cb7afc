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
	"time"

	"vitess.io/dbpool/go/vt/vterrors"
)

const (
	defaultSweepInterval    = 30 * time.Second
	defaultServerIdleMargin = 45 * time.Second
	defaultDrainTimeout     = 10 * time.Second
)

// Config describes one pool. It is comparable and is used as the key of
// the Registry, so two equal Configs always share a pool.
type Config struct {
	// Name labels the pool in logs and metrics. An empty name is replaced by
	// a generated one.
	Name string

	Address  string
	Database string
	User     string
	Password string

	MinSize int
	MaxSize int

	// MaxIdle is how long a connection may sit idle before it is evicted,
	// as long as the pool stays at or above MinSize. Zero disables it.
	MaxIdle time.Duration
	// ValidationGrace skips the liveness probe on checkout for connections
	// returned more recently than this.
	ValidationGrace time.Duration
	// ConnectTimeout bounds both opening a connection and waiting for one.
	ConnectTimeout time.Duration

	// SweepInterval overrides the default eviction sweep period.
	SweepInterval time.Duration
	// ServerIdleMargin is how long before the server's own idle timeout a
	// connection gets evicted.
	ServerIdleMargin time.Duration
	// DrainTimeout is how long Close waits for connections to come back
	// before aborting them.
	DrainTimeout time.Duration
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:3306",
		MinSize:         8,
		MaxSize:         8,
		MaxIdle:         10 * time.Minute,
		ValidationGrace: time.Second,
		ConnectTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for values the pool cannot work with.
func (cfg Config) Validate() error {
	switch {
	case cfg.MaxSize < 1:
		return vterrors.Wrapf(ErrInvalidConfig, "max size %d must be at least 1", cfg.MaxSize)
	case cfg.MinSize < 0:
		return vterrors.Wrapf(ErrInvalidConfig, "min size %d is negative", cfg.MinSize)
	case cfg.ConnectTimeout <= 0:
		return vterrors.Wrapf(ErrInvalidConfig, "connect timeout %v must be positive", cfg.ConnectTimeout)
	case cfg.MaxIdle < 0, cfg.ValidationGrace < 0, cfg.SweepInterval < 0, cfg.ServerIdleMargin < 0, cfg.DrainTimeout < 0:
		return vterrors.Wrap(ErrInvalidConfig, "durations must not be negative")
	}
	return nil
}

// minSize is the floor the pool maintains; it never exceeds MaxSize.
func (cfg Config) minSize() int {
	return min(cfg.MinSize, cfg.MaxSize)
}

// sweepInterval is the default (or overridden) sweep period, shortened to
// half of MaxIdle so that idle connections do not outlive MaxIdle by much.
func (cfg Config) sweepInterval() time.Duration {
	interval := defaultSweepInterval
	if cfg.SweepInterval > 0 {
		interval = cfg.SweepInterval
	}
	if cfg.MaxIdle > 0 {
		interval = min(interval, cfg.MaxIdle/2)
	}
	return max(interval, time.Millisecond)
}

func (cfg Config) serverIdleMargin() time.Duration {
	if cfg.ServerIdleMargin > 0 {
		return cfg.ServerIdleMargin
	}
	return defaultServerIdleMargin
}

func (cfg Config) drainTimeout() time.Duration {
	if cfg.DrainTimeout > 0 {
		return cfg.DrainTimeout
	}
	return defaultDrainTimeout
}

func (cfg Config) identity() Identity {
	return Identity{User: cfg.User, Password: cfg.Password}
}

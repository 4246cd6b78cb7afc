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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vitess.io/dbpool/go/vt/utils"
)

// Flag names, also used as viper keys.
const (
	flagName             = "pool-name"
	flagAddress          = "pool-address"
	flagDatabase         = "pool-database"
	flagUser             = "pool-user"
	flagPassword         = "pool-password"
	flagMinSize          = "pool-min-size"
	flagMaxSize          = "pool-max-size"
	flagMaxIdle          = "pool-max-idle"
	flagValidationGrace  = "pool-validation-grace"
	flagConnectTimeout   = "pool-connect-timeout"
	flagSweepInterval    = "pool-sweep-interval"
	flagServerIdleMargin = "pool-server-idle-margin"
	flagDrainTimeout     = "pool-drain-timeout"
)

// RegisterFlags installs the pool configuration flags on fs and returns the
// Config they are parsed into.
func RegisterFlags(fs *pflag.FlagSet) *Config {
	def := DefaultConfig()
	cfg := &Config{}

	utils.SetFlagStringVar(fs, &cfg.Name, flagName, def.Name, "label of the pool in logs and metrics")
	utils.SetFlagStringVar(fs, &cfg.Address, flagAddress, def.Address, "host:port of the database server")
	utils.SetFlagStringVar(fs, &cfg.Database, flagDatabase, def.Database, "default database of pooled connections")
	utils.SetFlagStringVar(fs, &cfg.User, flagUser, def.User, "user the pool connects as")
	utils.SetFlagStringVar(fs, &cfg.Password, flagPassword, def.Password, "password of --pool-user")
	utils.SetFlagIntVar(fs, &cfg.MinSize, flagMinSize, def.MinSize, "connections kept open even when idle")
	utils.SetFlagIntVar(fs, &cfg.MaxSize, flagMaxSize, def.MaxSize, "maximum number of open connections")
	utils.SetFlagDurationVar(fs, &cfg.MaxIdle, flagMaxIdle, def.MaxIdle, "idle time after which connections above --pool-min-size are closed (0 disables)")
	utils.SetFlagDurationVar(fs, &cfg.ValidationGrace, flagValidationGrace, def.ValidationGrace, "skip validating connections returned more recently than this")
	utils.SetFlagDurationVar(fs, &cfg.ConnectTimeout, flagConnectTimeout, def.ConnectTimeout, "timeout for opening a connection and for waiting on the pool")
	utils.SetFlagDurationVar(fs, &cfg.SweepInterval, flagSweepInterval, def.SweepInterval, "period of the idle eviction sweep (0 uses the default)")
	utils.SetFlagDurationVar(fs, &cfg.ServerIdleMargin, flagServerIdleMargin, def.ServerIdleMargin, "evict connections this long before the server's idle timeout (0 uses the default)")
	utils.SetFlagDurationVar(fs, &cfg.DrainTimeout, flagDrainTimeout, def.DrainTimeout, "how long closing a pool waits for connections in use (0 uses the default)")
	return cfg
}

// ConfigFromViper reads a Config from v. Keys are the flag names; binding
// the flag set with v.BindPFlags lets flags, config files and environment
// variables all feed the same Config.
func ConfigFromViper(v *viper.Viper) Config {
	def := DefaultConfig()
	v.SetDefault(flagAddress, def.Address)
	v.SetDefault(flagMinSize, def.MinSize)
	v.SetDefault(flagMaxSize, def.MaxSize)
	v.SetDefault(flagMaxIdle, def.MaxIdle)
	v.SetDefault(flagValidationGrace, def.ValidationGrace)
	v.SetDefault(flagConnectTimeout, def.ConnectTimeout)

	return Config{
		Name:             v.GetString(flagName),
		Address:          v.GetString(flagAddress),
		Database:         v.GetString(flagDatabase),
		User:             v.GetString(flagUser),
		Password:         v.GetString(flagPassword),
		MinSize:          v.GetInt(flagMinSize),
		MaxSize:          v.GetInt(flagMaxSize),
		MaxIdle:          v.GetDuration(flagMaxIdle),
		ValidationGrace:  v.GetDuration(flagValidationGrace),
		ConnectTimeout:   v.GetDuration(flagConnectTimeout),
		SweepInterval:    v.GetDuration(flagSweepInterval),
		ServerIdleMargin: v.GetDuration(flagServerIdleMargin),
		DrainTimeout:     v.GetDuration(flagDrainTimeout),
	}
}

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

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vitess.io/dbpool/go/pools/dbpool/mysqlpool"
)

// Ping returns the ping subcommand.
func Ping(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Opens the pool, validates one connection and prints the pool state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := poolConfig(v)
			if err != nil {
				return err
			}
			pool, err := mysqlpool.Retrieve(cfg)
			if err != nil {
				return err
			}
			defer mysqlpool.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConnectTimeout)
			defer cancel()

			conn, err := pool.Get(ctx)
			if err != nil {
				return err
			}
			defer conn.Recycle()

			if !conn.Conn.IsValid(ctx) {
				return fmt.Errorf("connection to %s is not valid", cfg.Address)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s, server idle timeout %v\n", cfg.Address, conn.Conn.ServerIdleTimeout())
			fmt.Fprintln(cmd.OutOrStdout(), pool.StatsJSON())
			return nil
		},
	}
}

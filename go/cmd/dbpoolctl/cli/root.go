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
	goflag "flag"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vitess.io/dbpool/go/pools/dbpool"
	"vitess.io/dbpool/go/vt/log"
	"vitess.io/dbpool/go/vt/utils"
)

const envPrefix = "DBPOOL"

var configFile string

// Main returns the root command of dbpoolctl. Pool settings come from the
// --pool-* flags, DBPOOL_* environment variables (DBPOOL_POOL_MAX_SIZE for
// --pool-max-size) and an optional config file, in that order of
// precedence.
func Main() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "dbpoolctl",
		Short:         "dbpoolctl opens a pool of MySQL connections and puts it under load.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init(cmd.Flags()); err != nil {
				return err
			}
			return loadConfig(v, cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) { cmd.Help() },
	}

	fs := rootCmd.PersistentFlags()
	fs.SetNormalizeFunc(utils.NormalizeUnderscoresToDashes)
	fs.AddGoFlagSet(goflag.CommandLine)
	log.RegisterFlags(fs)
	dbpool.RegisterFlags(fs)
	fs.StringVarP(&configFile, "config-file", "f", "", "yaml, json or toml file with pool settings, keyed by flag name")
	rootCmd.MarkPersistentFlagFilename("config-file", "yaml", "yml", "json", "toml")

	rootCmd.AddCommand(Bench(v))
	rootCmd.AddCommand(Ping(v))
	return rootCmd
}

// loadConfig binds the parsed flags, the environment and the config file
// to v.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
		log.InfoS("loaded config file", "file", v.ConfigFileUsed())
	}
	return nil
}

// poolConfig reads and validates the pool configuration from v.
func poolConfig(v *viper.Viper) (dbpool.Config, error) {
	cfg := dbpool.ConfigFromViper(v)
	return cfg, cfg.Validate()
}

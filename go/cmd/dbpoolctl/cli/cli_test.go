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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitess.io/dbpool/go/pools/dbpool"
)

type nopConn struct{}

func (nopConn) IsValid(context.Context) bool     { return true }
func (nopConn) Reset(context.Context) error      { return nil }
func (nopConn) Close()                           {}
func (nopConn) ForceAbort()                      {}
func (nopConn) ServerIdleTimeout() time.Duration { return 0 }

func nopConnector() dbpool.Connector {
	return dbpool.ConnectorFunc(func(context.Context, dbpool.Config, dbpool.Identity) (dbpool.Connection, error) {
		return nopConn{}, nil
	})
}

func TestRunBench(t *testing.T) {
	registry := dbpool.NewRegistry(nopConnector())
	defer registry.CloseAll()

	cfg := dbpool.DefaultConfig()
	cfg.Name = "bench"
	cfg.MinSize = 1
	cfg.MaxSize = 2
	pool, err := registry.Retrieve(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	result, err := runBench(ctx, pool, benchOptions{concurrency: 4, hold: time.Millisecond})
	require.NoError(t, err)
	assert.Positive(t, result.acquired.Load())
	assert.Zero(t, result.timeouts.Load())
	assert.Zero(t, result.failures.Load())
	assert.GreaterOrEqual(t, result.elapsed, 200*time.Millisecond)

	assert.EqualValues(t, 0, pool.Pending())
	assert.EqualValues(t, 0, pool.Active())
	assert.LessOrEqual(t, pool.Total(), int64(2))

	var out bytes.Buffer
	result.print(&out, pool)
	assert.Contains(t, out.String(), "acquired:")
	assert.Contains(t, out.String(), `"Name": "bench"`)
}

func TestRunBenchClosedPool(t *testing.T) {
	registry := dbpool.NewRegistry(nopConnector())
	pool, err := registry.Retrieve(dbpool.DefaultConfig())
	require.NoError(t, err)
	pool.Close()

	_, err = runBench(context.Background(), pool, benchOptions{concurrency: 2})
	assert.ErrorIs(t, err, dbpool.ErrPoolClosed)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(file, []byte("pool-database: commerce\npool-max-size: 4\n"), 0o644))

	configFile = file
	defer func() { configFile = "" }()
	t.Setenv("DBPOOL_POOL_USER", "vt_env")

	cmd := &cobra.Command{}
	dbpool.RegisterFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--pool-max-size=6"}))

	v := viper.New()
	require.NoError(t, loadConfig(v, cmd))

	cfg, err := poolConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "commerce", cfg.Database)
	assert.Equal(t, "vt_env", cfg.User)
	// flags set on the command line win over the file
	assert.Equal(t, 6, cfg.MaxSize)
	assert.Equal(t, "127.0.0.1:3306", cfg.Address)
}

func TestMainCommands(t *testing.T) {
	root := Main()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"bench", "ping"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("pool-max-size"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-fmt"))
}

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
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"vitess.io/dbpool/go/pools/dbpool"
	"vitess.io/dbpool/go/pools/dbpool/mysqlpool"
	"vitess.io/dbpool/go/vt/log"
	"vitess.io/dbpool/go/vt/vterrors"
)

type benchOptions struct {
	concurrency int
	duration    time.Duration
	hold        time.Duration
	query       string
	metricsAddr string
}

// Bench returns the bench subcommand.
func Bench(v *viper.Viper) *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Acquires and releases pooled connections from concurrent workers.",
		Long: `Runs --concurrency workers that each acquire a connection, optionally run
--query on it, hold it for --hold and give it back, until --duration elapses.
Pool statistics are printed at the end.`,
		Example: "dbpoolctl bench --pool-address=127.0.0.1:3306 --pool-user=root --pool-max-size=16 --concurrency=64 --query='SELECT 1'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := poolConfig(v)
			if err != nil {
				return err
			}
			if opts.concurrency < 1 {
				return vterrors.Errorf(codes.InvalidArgument, "concurrency %d must be at least 1", opts.concurrency)
			}

			if opts.metricsAddr != "" {
				stop := serveMetrics(opts.metricsAddr)
				defer stop()
			}

			pool, err := mysqlpool.Retrieve(cfg)
			if err != nil {
				return err
			}
			defer mysqlpool.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.duration)
			defer cancel()

			result, err := runBench(ctx, pool, opts)
			if err != nil {
				return err
			}
			result.print(cmd.OutOrStdout(), pool)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 8, "number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().DurationVar(&opts.hold, "hold", time.Millisecond, "how long each worker keeps a connection")
	cmd.Flags().StringVar(&opts.query, "query", "", "statement to execute on every acquired connection")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9104")
	return cmd
}

// connectionSource is what the benchmark needs from a pool.
type connectionSource interface {
	Get(ctx context.Context) (*dbpool.Pooled, error)
}

type benchResult struct {
	elapsed   time.Duration
	acquired  atomic.Int64
	timeouts  atomic.Int64
	failures  atomic.Int64
	queryErrs atomic.Int64
}

// runBench drives the pool until ctx is done. Errors from the pool or the
// query are counted, not returned.
func runBench(ctx context.Context, pool connectionSource, opts benchOptions) (*benchResult, error) {
	result := &benchResult{}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.concurrency; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				conn, err := pool.Get(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					switch vterrors.Code(err) {
					case codes.DeadlineExceeded:
						result.timeouts.Add(1)
					case codes.Unavailable:
						return err
					default:
						result.failures.Add(1)
					}
					continue
				}
				result.acquired.Add(1)

				if opts.query != "" {
					if err := execQuery(ctx, conn, opts.query); err != nil {
						result.queryErrs.Add(1)
						conn.Fail(err)
						continue
					}
				}
				if opts.hold > 0 {
					select {
					case <-time.After(opts.hold):
					case <-ctx.Done():
					}
				}
				conn.Recycle()
			}
			return nil
		})
	}
	err := g.Wait()
	result.elapsed = time.Since(start)
	return result, err
}

func execQuery(ctx context.Context, conn *dbpool.Pooled, query string) error {
	mc, ok := conn.Conn.(*mysqlpool.Conn)
	if !ok {
		return nil
	}
	execer, ok := mc.Driver().(driver.ExecerContext)
	if !ok {
		return errors.New("driver connection cannot execute statements")
	}
	_, err := execer.ExecContext(ctx, query, nil)
	return err
}

func (r *benchResult) print(w io.Writer, pool *dbpool.Pool) {
	acquired := r.acquired.Load()
	rate := float64(acquired) / r.elapsed.Seconds()
	fmt.Fprintf(w, "elapsed:       %v\n", r.elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "acquired:      %d (%.1f/s)\n", acquired, rate)
	fmt.Fprintf(w, "timeouts:      %d\n", r.timeouts.Load())
	fmt.Fprintf(w, "failures:      %d\n", r.failures.Load())
	fmt.Fprintf(w, "query errors:  %d\n", r.queryErrs.Load())
	if pool != nil {
		fmt.Fprintf(w, "pool:          %s\n", pool.StatsJSON())
	}
}

// serveMetrics exposes the default Prometheus registry on addr and returns
// a function that stops the server.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorS("metrics server failed", "addr", addr, "err", err)
		}
	}()
	log.InfoS("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

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

package mysqlpool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"vitess.io/dbpool/go/pools/dbpool"
)

// Pools returns the process-wide registry of MySQL pools. It is created on
// first use and exports its metrics through the default Prometheus
// registerer.
var Pools = sync.OnceValue(func() *dbpool.Registry {
	return dbpool.NewRegistry(NewConnector(), dbpool.WithRegisterer(prometheus.DefaultRegisterer))
})

// Retrieve returns the shared pool for cfg.
func Retrieve(cfg dbpool.Config) (*dbpool.Pool, error) {
	return Pools().Retrieve(cfg)
}

// Shutdown closes every pool of the process-wide registry. It should be
// called once on process exit.
func Shutdown() {
	Pools().CloseAll()
}

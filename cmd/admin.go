// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packetd/respcache/logger"
	"github.com/packetd/respcache/metrics"
	"github.com/packetd/respcache/server"
	"github.com/packetd/respcache/store"
)

// setupAdminRoutes wires the /metrics scrape endpoint and the /-/logger
// level-change endpoint onto the admin HTTP server.
func setupAdminRoutes(admin *server.Server, st *store.Store) {
	admin.RegisterGetRoute("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordUptime()
		metrics.RecordStoreStats(st)
		promhttp.Handler().ServeHTTP(w, r)
	})

	admin.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.FormValue("level")
		logger.SetLoggerLevel(level)
		w.Write([]byte(`{"status": "success"}`))
	})
}

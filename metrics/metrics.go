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

// Package metrics declares the process's Prometheus collectors. Every
// collector is registered at package init through promauto, the same way
// the teacher's controller package wires its own gauges and counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/respcache/common"
	"github.com/packetd/respcache/store"
)

var (
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime_seconds",
			Help:      "Uptime in seconds",
		},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "git_hash", "build_time"},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "connections_active",
			Help:      "Currently open client connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "connections_total",
			Help:      "Client connections accepted since start",
		},
	)

	ConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "connections_rejected_total",
			Help:      "Client connections rejected by the admission limiter",
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "commands_total",
			Help:      "Commands handled, by command name",
		},
		[]string{"command"},
	)

	ProtocolErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "protocol_errors_total",
			Help:      "Connections closed due to a RESP protocol error",
		},
	)

	StoreKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "store_keys",
			Help:      "Keys currently held by a shard",
		},
		[]string{"shard"},
	)

	StoreEvictionsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "store_evictions_total",
			Help:      "Keys a shard has lazily evicted since start",
		},
		[]string{"shard"},
	)
)

// RecordBuildInfo is called once at startup.
func RecordBuildInfo(info common.BuildInfo) {
	BuildInfo.WithLabelValues(info.Version, info.GitHash, info.Time).Set(1)
}

// RecordUptime refreshes the uptime gauge; callers invoke this on every
// /metrics scrape so the value never depends on a background ticker.
func RecordUptime() {
	Uptime.Set(float64(time.Now().Unix() - common.Started()))
}

// RecordStoreStats refreshes the per-shard key count and eviction gauges
// from a fresh snapshot. Called on every /metrics scrape; cheap even for a
// large shard count since Stats is a single pass with no locking beyond
// each shard's own brief guard.
func RecordStoreStats(st *store.Store) {
	for _, s := range st.Stats() {
		shard := strconv.Itoa(s.Index)
		StoreKeys.WithLabelValues(shard).Set(float64(s.Keys))
		StoreEvictionsTotal.WithLabelValues(shard).Set(float64(s.Evictions))
	}
}

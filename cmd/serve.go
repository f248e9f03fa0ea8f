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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packetd/respcache/common"
	"github.com/packetd/respcache/config"
	"github.com/packetd/respcache/conn"
	"github.com/packetd/respcache/internal/sigs"
	"github.com/packetd/respcache/logger"
	"github.com/packetd/respcache/metrics"
	"github.com/packetd/respcache/resp"
	"github.com/packetd/respcache/server"
	"github.com/packetd/respcache/store"
)

var serveConfig = config.Default()
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := serveConfig
		if serveConfigPath != "" {
			loaded, err := config.LoadPath(serveConfigPath, cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				os.Exit(1)
			}
			cfg = loaded
		}

		logger.SetOptions(cfg.Logger)
		runServe(cfg)
	},
	Example: "# respcache serve --port 6399 --shard 16",
}

func init() {
	def := config.Default()

	serveCmd.Flags().StringVar(&serveConfig.Hostname, "hostname", def.Hostname, "Address to bind the RESP listener")
	serveCmd.Flags().IntVar(&serveConfig.Port, "port", def.Port, "Port to bind the RESP listener")
	serveCmd.Flags().IntVar(&serveConfig.ShardCount, "shard", def.ShardCount, "Number of store shards")
	serveCmd.Flags().IntVar(&serveConfig.Capacity, "capacity", def.Capacity, "Hint for total expected key count, used to pre-size shard maps")
	serveCmd.Flags().IntVar(&serveConfig.BufferSize, "buffer", def.BufferSize, "Per-connection read/write buffer size in bytes")
	serveCmd.Flags().IntVar(&serveConfig.ConnLimit, "limit", def.ConnLimit, "Maximum concurrently open connections (0 = unlimited)")
	serveCmd.Flags().DurationVar(&serveConfig.IdleTimeout, "idle-timeout", def.IdleTimeout, "Close a connection after this much inactivity (0 = disabled)")
	serveCmd.Flags().StringVar(&serveConfig.Logger.Level, "verbosity", def.Logger.Level, "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveConfig.Server.Address, "admin", def.Server.Address, "Admin/metrics HTTP server bind address (empty disables it)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Optional YAML configuration file, merged over flag defaults")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg config.Config) {
	st := store.New(cfg.ShardCount, cfg.Capacity)

	metrics.RecordBuildInfo(common.GetBuildInfo())

	admin, err := server.New(cfg.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin server: %v\n", err)
		os.Exit(1)
	}
	if admin != nil {
		setupAdminRoutes(admin, st)
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	srv := conn.New(conn.Config{
		BufferSize:  cfg.BufferSize,
		ConnLimit:   cfg.ConnLimit,
		IdleTimeout: cfg.IdleTimeout,
		Limits:      resp.DefaultLimits,
	}, st)

	go func() {
		if err := srv.ListenAndServe(cfg.Addr()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to serve: %v\n", err)
			os.Exit(1)
		}
	}()
	logger.Infof("%s %s listening on %s (shards=%d)", common.App, common.Version, cfg.Addr(), cfg.ShardCount)

	<-sigs.Terminate()
	logger.Infof("shutting down")

	start := time.Now()
	if err := srv.Close(); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
	logger.Infof("shutdown complete in %s", time.Since(start))
}

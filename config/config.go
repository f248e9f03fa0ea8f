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

// Package config declares the server's settings and loads them through
// confengine, the same elastic/go-ucfg wrapper the teacher uses for its
// own YAML configuration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/packetd/respcache/common"
	"github.com/packetd/respcache/confengine"
	"github.com/packetd/respcache/logger"
	"github.com/packetd/respcache/server"
)

// Config is the full process configuration. Most fields have a CLI-flag
// equivalent (see cmd/serve.go); the logger's file options and the admin
// server's Pprof and Timeout are set only through the YAML file, which,
// when given, is unpacked over the flag values.
type Config struct {
	// Hostname and Port are the RESP listener's bind address.
	Hostname string `config:"hostname"`
	Port     int    `config:"port"`

	// ShardCount is the number of store shards; Capacity is a hint for
	// the total number of keys expected, used only to pre-size each
	// shard's map.
	ShardCount int `config:"shardCount"`
	Capacity   int `config:"capacity"`

	// BufferSize sizes each connection's read chunk and caps the bytes
	// buffered for a frame that has not completed.
	BufferSize int `config:"bufferSize"`

	// ConnLimit caps the number of concurrently open connections; 0
	// means unlimited.
	ConnLimit int `config:"connLimit"`

	// IdleTimeout closes a connection that has sent nothing for this
	// long; 0 disables the timeout.
	IdleTimeout time.Duration `config:"idleTimeout"`

	Logger logger.Options `config:"logger"`
	Server server.Config  `config:"server"`
}

// Default returns the configuration used when no flags or config file
// override it.
func Default() Config {
	return Config{
		Hostname: "0.0.0.0",
		Port:     6399,
		// Shard count scales with the machine's concurrency, the same
		// way the teacher sizes its worker pools and channel buffers.
		ShardCount:  common.Concurrency(),
		BufferSize:  4096,
		ConnLimit:   10000,
		IdleTimeout: 0,
		Logger: logger.Options{
			Stdout: true,
			Level:  string(logger.LevelInfo),
		},
		// Address empty disables the admin/metrics HTTP server; it is
		// off unless --admin is given.
		Server: server.Config{
			Address: "",
			Timeout: 10 * time.Second,
		},
	}
}

// LoadPath merges the YAML file at path over base. A missing path is not
// an error in the caller's flow (cmd/serve.go only calls LoadPath when a
// --config flag was actually given).
func LoadPath(path string, base Config) (Config, error) {
	cfg, err := confengine.LoadConfigPath(path)
	if err != nil {
		return base, err
	}
	if err := cfg.Unpack(&base); err != nil {
		return base, err
	}
	return base, nil
}

// Addr is the RESP listener's "host:port" dial string.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

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

package common

const (
	// App is the program name reported in logs, build info, and the
	// User-Agent-less identification string the admin server exposes.
	App = "respcache"

	// Version is the program version.
	Version = "v0.1.0"

	// ReadWriteBlockSize is the default size of a connection's read
	// chunk, and the default cap on bytes buffered for a frame that has
	// not completed.
	//
	// A TCP segment tops out at 64K, but allocating that much per
	// connection is wasteful for a cache workload dominated by small
	// GET/SET commands, so reads are buffered in more modest chunks and
	// the decoder handles a partial command left behind; a command still
	// incomplete once more than this many bytes are buffered closes the
	// connection.
	ReadWriteBlockSize = 4096
)

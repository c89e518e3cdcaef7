// Copyright (C) 2026 Tadpole Labs, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package codec is the boundary between the streaming
// controller and the entropy-decoding machinery. The
// controller validates frame and block headers and hands
// block payloads to an Engine; the Engine turns them into
// decoded bytes.
package codec

import (
	"errors"

	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

var (
	ErrChecksum = errors.New("codec: content checksum mismatch")
)

// An Engine decodes the block payloads of one frame at a time.
//
// Engines are free to defer producing output: a call to Block
// may buffer its input and emit nothing, with the decoded bytes
// becoming available through Pending/Drain once enough of the
// frame has been seen. The controller drains pending output
// into its staged output buffer between blocks.
type Engine interface {
	// Start prepares the engine for a new frame. raw holds the
	// exact encoded frame header (already validated by the
	// caller); dict is the dictionary bound to the session, or
	// nil when none is.
	Start(hdr *zfmt.Header, raw []byte, dict *Dict) error
	// Block consumes the payload of one validated block.
	// src holds exactly blk.PayloadSize() bytes (nil for empty
	// blocks). The return value is the number of decoded bytes
	// written to dst immediately; deferred output is reported
	// by Pending instead.
	Block(dst []byte, blk zfmt.Block, src []byte) (int, error)
	// Pending returns the number of decoded bytes held by
	// the engine that have not been drained yet.
	Pending() int
	// Drain moves up to len(dst) pending bytes into dst and
	// returns the number moved.
	Drain(dst []byte) int
	// Verify checks the frame's trailing content checksum
	// (the low 32 bits of the XXH64 of the decoded content).
	Verify(sum uint32) error
}

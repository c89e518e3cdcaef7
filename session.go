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

// Package zstdcodec implements an incremental zstandard
// decoder built for arena-backed, session-scoped memory.
//
// A Session consumes compressed bytes from its input view
// and produces decoded bytes into its output view, making
// whatever forward progress the two views allow and then
// returning to the caller. The caller decides when to call
// again, typically after refilling the input view or
// emptying the output view. All durable decoder state lives
// in the Session and in staged buffers allocated from an
// arena.Arena, so a host can discard any number of sessions
// at once by pruning the arena.
package zstdcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/tadpole-labs/zstd-codec-lib/arena"
	"github.com/tadpole-labs/zstd-codec-lib/codec"
	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

// A Buffer is one of the two views a Session operates on.
// The host sets Data (and, for input, fills it) and reads
// Pos back after each Step; the controller advances Pos as
// it consumes input or produces output. Pos must never
// exceed len(Data) on entry to Step.
type Buffer struct {
	Data []byte
	Pos  int
}

func (b *Buffer) remaining() int { return len(b.Data) - b.Pos }

// streamStage is the outer controller state.
type streamStage uint8

const (
	stageInit streamStage = iota
	stageLoadHeader
	stageRead
	stageLoad
	stageFlush
)

// frameStage tracks position within a frame's body.
type frameStage uint8

const (
	frameBlockHeader frameStage = iota
	frameBlockBody
	frameChecksum
	frameSkip
)

const (
	frameChecksumSize = 4

	// calls with zero consumed input and zero produced
	// output tolerated before reporting host misuse
	noForwardProgressMax = 16

	// slack appended to the staged output buffer so a
	// block never lands flush against its end
	stagedMargin = 64
)

// A Session is the mutable state of one logical decode
// stream. It survives across frames: completing a frame
// returns the controller to its initial stage, ready for
// the next frame's header.
//
// A Session is not safe for concurrent use.
type Session struct {
	// In is the compressed input view.
	In Buffer
	// Out is the decoded output view.
	Out Buffer

	mem *arena.Arena
	cfg Config

	eng  codec.Engine
	dec  *zstd.Decoder // single-pass decoder; verifies checksums itself
	dict *codec.Dict

	stage  streamStage
	fstage frameStage

	hdr    zfmt.Header
	hdrBuf [zfmt.HeaderMaxSize]byte
	hdrLen int

	// bytes the next unit of work needs; 0 once the
	// current frame is fully decoded
	expected int
	blk      zfmt.Block

	// staged buffers, carved from one arena allocation
	inBuff           []byte
	inPos            int
	outBuff          []byte
	outStart, outEnd int

	// consecutive frames for which the staged buffers were
	// oversized; drives the amortized shrink policy
	oversized int

	// output view as of the last call; kept so a stable-output
	// optimization mode can validate the caller against it
	expectedOut Buffer

	hostage    bool
	noProgress int
}

// NewSession returns a Session that allocates its staged
// buffers from mem. A nil mem reserves a fresh arena of
// cfg.ArenaCapacity bytes; a nil cfg selects defaults.
func NewSession(mem *arena.Arena, cfg *Config) (*Session, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.fill()
	if mem == nil {
		var err error
		mem, err = arena.New(c.ArenaCapacity)
		if err != nil {
			return nil, err
		}
	}
	eng, err := codec.NewZstd(c.MaxWindow)
	if err != nil {
		return nil, err
	}
	s := &Session{mem: mem, cfg: c, eng: eng}
	if err := s.rebuildOnePass(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) rebuildOnePass() error {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxWindow(s.cfg.MaxWindow),
	}
	opts = codec.DecoderOptions(opts, s.dict)
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return fmt.Errorf("zstdcodec: building decoder: %w", err)
	}
	if s.dec != nil {
		s.dec.Close()
	}
	s.dec = dec
	return nil
}

// Reset returns the controller to its initial stage with a
// cleared forward-progress counter. Staged buffers are kept
// and resized lazily when the next frame header calls for it.
func (s *Session) Reset() {
	s.stage = stageInit
	s.noProgress = 0
}

// SetDictionary binds d as the session's active dictionary;
// a nil d clears it. The dictionary applies to frames whose
// headers reference it (or, for raw content dictionaries,
// to any subsequent frame).
func (s *Session) SetDictionary(d *codec.Dict) error {
	if d == s.dict {
		return nil
	}
	s.dict = d
	return s.rebuildOnePass()
}

// Arena returns the arena the session stages through.
func (s *Session) Arena() *arena.Arena { return s.mem }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

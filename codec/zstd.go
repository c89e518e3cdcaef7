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

package codec

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"

	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

// growCap bounds up-front output growth for frames that
// declare a very large content size; beyond this the slice
// grows as the decoder produces bytes.
const growCap = 8 << 20

// zstdEngine reassembles the frame image from the block
// payloads the controller feeds it and decodes the whole
// frame at once when the last block arrives. Entropy
// decoding and history reconstruction are delegated to
// the zstd library; this type only restores the container
// bytes around the payloads.
//
// Output is therefore fully deferred: Block always returns
// 0 and the decoded content surfaces through Pending/Drain
// after the final block.
type zstdEngine struct {
	maxWindow uint64
	dec       *zstd.Decoder
	dict      *Dict

	img []byte // frame being reassembled
	out []byte // decoded content
	off int    // drained prefix of out

	sum     uint64 // XXH64 of out
	decoded bool
}

// NewZstd returns an Engine backed by the zstd library.
// maxWindow bounds the window size of accepted frames;
// 0 means the library default.
func NewZstd(maxWindow uint64) (Engine, error) {
	e := &zstdEngine{maxWindow: maxWindow}
	if err := e.rebuild(nil); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *zstdEngine) rebuild(d *Dict) error {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if e.maxWindow != 0 {
		opts = append(opts, zstd.WithDecoderMaxWindow(e.maxWindow))
	}
	opts = DecoderOptions(opts, d)
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return fmt.Errorf("codec: building zstd decoder: %w", err)
	}
	if e.dec != nil {
		e.dec.Close()
	}
	e.dec = dec
	e.dict = d
	return nil
}

func (e *zstdEngine) Start(hdr *zfmt.Header, raw []byte, dict *Dict) error {
	if dict != e.dict {
		if err := e.rebuild(dict); err != nil {
			return err
		}
	}
	e.img = append(e.img[:0], raw...)
	// the controller consumes and verifies the trailing
	// checksum itself, so the reassembled image must not
	// promise one to the library
	e.img[4] &^= 0x04
	e.out = e.out[:0]
	if hdr.HasContentSize {
		e.out = slices.Grow(e.out, int(minU64(hdr.ContentSize, growCap)))
	}
	e.off = 0
	e.sum = 0
	e.decoded = false
	return nil
}

func (e *zstdEngine) Block(dst []byte, blk zfmt.Block, src []byte) (int, error) {
	e.img = zfmt.AppendBlockHeader(e.img, blk)
	e.img = append(e.img, src...)
	if !blk.Last {
		return 0, nil
	}
	out, err := e.dec.DecodeAll(e.img, e.out[:0])
	if err != nil {
		return 0, fmt.Errorf("codec: %w", err)
	}
	e.out = out
	e.sum = xxhash.Sum64(out)
	e.decoded = true
	return 0, nil
}

func (e *zstdEngine) Pending() int { return len(e.out) - e.off }

func (e *zstdEngine) Drain(dst []byte) int {
	n := copy(dst, e.out[e.off:])
	e.off += n
	return n
}

func (e *zstdEngine) Verify(sum uint32) error {
	if !e.decoded {
		return errors.New("codec: checksum before final block")
	}
	if uint32(e.sum) != sum {
		return fmt.Errorf("%w: computed %#08x, stored %#08x", ErrChecksum, uint32(e.sum), sum)
	}
	return nil
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

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

package zstdcodec

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"

	"github.com/tadpole-labs/zstd-codec-lib/codec"
)

var oneShot *zstd.Decoder

func init() {
	// by default, concurrency is set to min(4, GOMAXPROCS);
	// we'd like it to *always* be GOMAXPROCS
	d, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)),
		zstd.WithDecoderMaxWindow(DefaultMaxWindow))
	if err != nil {
		panic(err)
	}
	oneShot = d
}

// DecodeAll decompresses every frame in src and appends the
// decoded bytes to dst, returning the extended slice. Skippable
// frames embedded between real frames are consumed without
// producing output. Trailing bytes that do not begin a frame
// are an error. A non-nil d supplies the dictionary frames may
// reference.
func DecodeAll(src, dst []byte, d *codec.Dict) ([]byte, error) {
	if d == nil {
		return oneShot.DecodeAll(src, dst)
	}
	opts := codec.DecoderOptions([]zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxWindow(DefaultMaxWindow),
	}, d)
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstdcodec: building decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(src, dst)
}

// onePass decodes the exactly-one frame in src directly into
// dst, which must be able to hold its declared content size.
// The decoder must not have had to realloc the buffer.
func (s *Session) onePass(dst, src []byte) (int, error) {
	into := dst[:0:len(dst)]
	ret, err := s.dec.DecodeAll(src, into)
	if err != nil {
		return 0, err
	}
	if len(ret) > len(dst) {
		return 0, fmt.Errorf("zstdcodec: single-pass output of %d bytes into %d-byte view", len(ret), len(dst))
	}
	if len(ret) > 0 && &ret[0] != &dst[0] {
		return 0, fmt.Errorf("zstdcodec: single-pass output buffer realloc'd")
	}
	return len(ret), nil
}

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
	"bytes"
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

// buildRaw encodes content as a single-segment frame of raw
// blocks no larger than blockCap, returning the encoded frame
// split into (header, blocks) so tests can feed them separately.
func buildRaw(t *testing.T, content []byte, blockCap int, checksum bool) (hdr []byte, blocks []zfmt.Block, payloads [][]byte) {
	t.Helper()
	if len(content) > 255 {
		t.Fatal("buildRaw content too large for a 1-byte fcs")
	}
	desc := byte(0x20)
	if checksum {
		desc |= 0x04
	}
	hdr = []byte{0x28, 0xb5, 0x2f, 0xfd, desc, byte(len(content))}
	for off := 0; ; {
		n := len(content) - off
		if n > blockCap {
			n = blockCap
		}
		blk := zfmt.Block{Type: zfmt.BlockRaw, Size: n, Last: off+n == len(content)}
		blocks = append(blocks, blk)
		payloads = append(payloads, content[off:off+n])
		off += n
		if blk.Last {
			return
		}
	}
}

func TestZstdEngineDeferredFrame(t *testing.T) {
	eng, err := NewZstd(1 << 23)
	if err != nil {
		t.Fatal(err)
	}
	content := bytes.Repeat([]byte("deferral"), 16)
	hdrBytes, blocks, payloads := buildRaw(t, content, 40, true)
	hdr, need, err := zfmt.Parse(hdrBytes)
	if err != nil || need != 0 {
		t.Fatalf("parse: need=%d err=%v", need, err)
	}
	if err := eng.Start(&hdr, hdrBytes, nil); err != nil {
		t.Fatal(err)
	}
	for i, blk := range blocks {
		n, err := eng.Block(nil, blk, payloads[i])
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if n != 0 {
			t.Fatalf("block %d: immediate output %d from deferred engine", i, n)
		}
		if !blk.Last && eng.Pending() != 0 {
			t.Fatalf("block %d: pending output before last block", i)
		}
	}
	if eng.Pending() != len(content) {
		t.Fatalf("pending %d, want %d", eng.Pending(), len(content))
	}
	// drain in small steps
	var got []byte
	tmp := make([]byte, 13)
	for eng.Pending() > 0 {
		n := eng.Drain(tmp)
		got = append(got, tmp[:n]...)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("decoded content mismatch")
	}
	if err := eng.Verify(uint32(xxhash.Sum64(content))); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := eng.Verify(uint32(xxhash.Sum64(content)) + 1); !errors.Is(err, ErrChecksum) {
		t.Fatalf("bad sum accepted: %v", err)
	}
}

func TestZstdEngineRLE(t *testing.T) {
	eng, err := NewZstd(0)
	if err != nil {
		t.Fatal(err)
	}
	// single RLE block regenerating 100 bytes of 'z'
	hdrBytes := []byte{0x28, 0xb5, 0x2f, 0xfd, 0x20, 100}
	hdr, need, err := zfmt.Parse(hdrBytes)
	if err != nil || need != 0 {
		t.Fatalf("parse: need=%d err=%v", need, err)
	}
	if err := eng.Start(&hdr, hdrBytes, nil); err != nil {
		t.Fatal(err)
	}
	blk := zfmt.Block{Type: zfmt.BlockRLE, Size: 100, Last: true}
	if _, err := eng.Block(nil, blk, []byte{'z'}); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 200)
	n := eng.Drain(out)
	if n != 100 || !bytes.Equal(out[:n], bytes.Repeat([]byte{'z'}, 100)) {
		t.Fatalf("rle decode: %d bytes %q", n, out[:n])
	}
}

func TestZstdEngineReuse(t *testing.T) {
	eng, err := NewZstd(0)
	if err != nil {
		t.Fatal(err)
	}
	for i, content := range [][]byte{
		[]byte("first frame"),
		[]byte("the second frame has different content"),
	} {
		hdrBytes, blocks, payloads := buildRaw(t, content, 1<<10, false)
		hdr, _, err := zfmt.Parse(hdrBytes)
		if err != nil {
			t.Fatal(err)
		}
		if err := eng.Start(&hdr, hdrBytes, nil); err != nil {
			t.Fatal(err)
		}
		for j := range blocks {
			if _, err := eng.Block(nil, blocks[j], payloads[j]); err != nil {
				t.Fatal(err)
			}
		}
		out := make([]byte, len(content)+1)
		n := eng.Drain(out)
		if !bytes.Equal(out[:n], content) {
			t.Fatalf("frame %d: decode mismatch", i)
		}
	}
}

func TestNewDict(t *testing.T) {
	// raw content dictionary: no magic
	d, err := NewDict([]byte("just some prefix bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != 0 || d.HasEntropy {
		t.Fatalf("raw dict: %+v", d)
	}
	// structured dictionary magic with an ID
	blob := []byte{0x37, 0xa4, 0x30, 0xec, 0x2a, 0x00, 0x00, 0x00}
	d, err = NewDict(blob)
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != 0x2a || !d.HasEntropy {
		t.Fatalf("structured dict: %+v", d)
	}
	// truncated structured dictionary
	if _, err := NewDict(blob[:6]); err == nil {
		t.Fatal("truncated dictionary accepted")
	}
	if _, err := NewDict(nil); err == nil {
		t.Fatal("empty dictionary accepted")
	}
}

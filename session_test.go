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
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/tadpole-labs/zstd-codec-lib/codec"
	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

func newTestSession(t *testing.T, cfg *Config) *Session {
	t.Helper()
	ses, err := NewSession(nil, cfg)
	if err != nil {
		t.Fatalf("NewSession: %s", err)
	}
	t.Cleanup(func() { ses.Arena().Close() })
	return ses
}

// testPayload produces deterministic, compressible bytes.
func testPayload(n int) []byte {
	const words = "window block frame arena codec stream checksum "
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = words[(i+i/len(words))%len(words)]
	}
	return buf
}

// rawFrame assembles a single-segment frame holding content
// split into raw blocks of the given sizes (one block holding
// all of content when no sizes are given).
func rawFrame(t *testing.T, content []byte, checksum bool, blockSizes ...int) []byte {
	t.Helper()
	desc := byte(0x20)
	if checksum {
		desc |= 0x04
	}
	var fcs []byte
	switch {
	case len(content) <= 0xff:
		fcs = []byte{byte(len(content))}
	case len(content) <= 0xffff+256:
		desc |= 1 << 6
		fcs = binary.LittleEndian.AppendUint16(nil, uint16(len(content)-256))
	default:
		t.Fatalf("content of %d bytes needs a wider fcs than this helper emits", len(content))
	}
	out := []byte{0x28, 0xb5, 0x2f, 0xfd, desc}
	out = append(out, fcs...)
	if len(blockSizes) == 0 {
		blockSizes = []int{len(content)}
	}
	off := 0
	for i, n := range blockSizes {
		out = zfmt.AppendBlockHeader(out, zfmt.Block{
			Type: zfmt.BlockRaw,
			Size: n,
			Last: i == len(blockSizes)-1,
		})
		out = append(out, content[off:off+n]...)
		off += n
	}
	if off != len(content) {
		t.Fatalf("block sizes cover %d of %d content bytes", off, len(content))
	}
	if checksum {
		out = binary.LittleEndian.AppendUint32(out, uint32(xxhash.Sum64(content)))
	}
	return out
}

// rleFrame assembles a single-segment frame of n copies of b
// encoded as one RLE block.
func rleFrame(t *testing.T, b byte, n int, checksum bool) []byte {
	t.Helper()
	if n > 0xff {
		t.Fatalf("rle run of %d does not fit a 1-byte fcs", n)
	}
	desc := byte(0x20)
	if checksum {
		desc |= 0x04
	}
	out := []byte{0x28, 0xb5, 0x2f, 0xfd, desc, byte(n)}
	out = zfmt.AppendBlockHeader(out, zfmt.Block{Type: zfmt.BlockRLE, Size: n, Last: true})
	out = append(out, b)
	if checksum {
		content := bytes.Repeat([]byte{b}, n)
		out = binary.LittleEndian.AppendUint32(out, uint32(xxhash.Sum64(content)))
	}
	return out
}

// skipFrame assembles a skippable frame with n payload bytes.
func skipFrame(n int) []byte {
	out := []byte{0x5a, 0x2a, 0x4d, 0x18}
	out = binary.LittleEndian.AppendUint32(out, uint32(n))
	for i := 0; i < n; i++ {
		out = append(out, byte(i))
	}
	return out
}

// driveStream decodes comp through ses, refilling the input
// view inStep bytes at a time and draining output through an
// outStep-sized view, until every input byte is consumed and
// the decoder reports completion.
func driveStream(t *testing.T, ses *Session, comp []byte, inStep, outStep int) []byte {
	t.Helper()
	var got []byte
	dst := make([]byte, outStep)
	off := 0
	ses.In = Buffer{}
	for iter := 0; ; iter++ {
		if iter > 1<<21 {
			t.Fatalf("decoder stuck after %d calls (in=%d out=%d)", iter, inStep, outStep)
		}
		if ses.In.remaining() == 0 && off < len(comp) {
			n := minInt(inStep, len(comp)-off)
			ses.In = Buffer{Data: comp[off : off+n]}
			off += n
		}
		ses.Out = Buffer{Data: dst}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("Step (in=%d out=%d byte %d of %d): %s",
				inStep, outStep, off, len(comp), err)
		}
		got = append(got, dst[:ses.Out.Pos]...)
		if hint == 0 && off == len(comp) && ses.In.remaining() == 0 {
			return got
		}
	}
}

// A frame split across two input chunks decodes completely on
// the second call, with the first call's hint asking for the
// outstanding header plus one block header of look-ahead.
func TestStepResumesAcrossChunks(t *testing.T) {
	content := testPayload(10)
	comp := rawFrame(t, content, false)
	ses := newTestSession(t, nil)
	dst := make([]byte, 10)

	ses.In = Buffer{Data: comp[:3]}
	ses.Out = Buffer{Data: dst}
	hint, err := ses.Step()
	if err != nil {
		t.Fatalf("first call: %s", err)
	}
	if ses.In.Pos != 3 {
		t.Errorf("first call consumed %d of 3 bytes", ses.In.Pos)
	}
	// three header bytes outstanding plus a block header
	if hint != 6 {
		t.Errorf("first call hint: got %d, want 6", hint)
	}
	if ses.Out.Pos != 0 {
		t.Errorf("first call produced %d bytes from a bare prefix", ses.Out.Pos)
	}

	ses.In = Buffer{Data: comp[3:]}
	ses.Out = Buffer{Data: dst}
	hint, err = ses.Step()
	if err != nil {
		t.Fatalf("second call: %s", err)
	}
	if hint != 0 {
		t.Errorf("second call hint: got %d, want 0", hint)
	}
	if ses.In.Pos != len(comp)-3 {
		t.Errorf("second call consumed %d of %d bytes", ses.In.Pos, len(comp)-3)
	}
	if ses.Out.Pos != 10 || !bytes.Equal(dst, content) {
		t.Errorf("decoded %d bytes %q, want %q", ses.Out.Pos, dst[:ses.Out.Pos], content)
	}
}

// With the whole frame present and the output view holding the
// declared content size, a single call decodes the frame with
// no staging and stops exactly at the frame boundary.
func TestSinglePassShortcut(t *testing.T) {
	plain := testPayload(5000)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderCRC(true))
	if err != nil {
		t.Fatal(err)
	}
	comp := enc.EncodeAll(plain, nil)
	enc.Close()

	ses := newTestSession(t, nil)
	ses.In = Buffer{Data: append(comp, comp...)} // two frames back to back
	dst := make([]byte, len(plain))
	for frame := 0; frame < 2; frame++ {
		ses.Out = Buffer{Data: dst}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("frame %d: %s", frame, err)
		}
		if hint != 0 {
			t.Fatalf("frame %d hint: got %d, want 0", frame, hint)
		}
		if ses.In.Pos != (frame+1)*len(comp) {
			t.Fatalf("frame %d stopped at input byte %d, want %d",
				frame, ses.In.Pos, (frame+1)*len(comp))
		}
		if !bytes.Equal(dst[:ses.Out.Pos], plain) {
			t.Fatalf("frame %d decoded wrong content", frame)
		}
	}
}

// When the frame is fully decoded but the output view cannot
// hold all of it, the final input byte is withheld until the
// caller drains the rest.
func TestHostageByte(t *testing.T) {
	content := []byte("hello world")
	comp := rawFrame(t, content, false, 4, 4, 3)
	ses := newTestSession(t, nil)
	dst := make([]byte, 4)
	var got []byte

	ses.In = Buffer{Data: comp}
	wantHints := []int{1, 1, 0}
	wantPos := []int{len(comp) - 1, len(comp) - 1, len(comp)}
	for i := range wantHints {
		ses.Out = Buffer{Data: dst}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("call %d: %s", i, err)
		}
		got = append(got, dst[:ses.Out.Pos]...)
		if hint != wantHints[i] {
			t.Errorf("call %d hint: got %d, want %d", i, hint, wantHints[i])
		}
		if ses.In.Pos != wantPos[i] {
			t.Errorf("call %d input position: got %d, want %d", i, ses.In.Pos, wantPos[i])
		}
	}
	if !bytes.Equal(got, content) {
		t.Errorf("decoded %q, want %q", got, content)
	}
}

// With a trailing checksum the withheld tail is the whole
// 4-byte checksum unit rather than a single held-back byte:
// staged output is flushed before more input is consumed, so
// the final input bytes stay unread until the caller has
// drained every decoded byte, and only the completing call
// advances In.Pos to the end of the frame.
func TestChecksumGatesCompletion(t *testing.T) {
	content := testPayload(11)
	comp := rawFrame(t, content, true, 4, 4, 3)
	ses := newTestSession(t, nil)
	dst := make([]byte, 4)
	var got []byte

	ses.In = Buffer{Data: comp}
	wantHints := []int{frameChecksumSize, frameChecksumSize, 0}
	wantPos := []int{len(comp) - frameChecksumSize, len(comp) - frameChecksumSize, len(comp)}
	for i := range wantHints {
		ses.Out = Buffer{Data: dst}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("call %d: %s", i, err)
		}
		got = append(got, dst[:ses.Out.Pos]...)
		if hint != wantHints[i] {
			t.Errorf("call %d hint: got %d, want %d", i, hint, wantHints[i])
		}
		if ses.In.Pos != wantPos[i] {
			t.Errorf("call %d input position: got %d, want %d", i, ses.In.Pos, wantPos[i])
		}
		if i < len(wantHints)-1 && ses.In.Pos == len(comp) {
			t.Errorf("call %d consumed the checksum before output drained", i)
		}
	}
	if !bytes.Equal(got, content) {
		t.Errorf("decoded %q, want %q", got, content)
	}
}

// Repeated calls with an exhausted input view report the same
// hint until the misuse threshold trips.
func TestNoProgressSrcEmpty(t *testing.T) {
	comp := rawFrame(t, testPayload(10), false)
	ses := newTestSession(t, nil)
	dst := make([]byte, 16)

	ses.In = Buffer{Data: comp[:6]} // exactly the frame header
	ses.Out = Buffer{Data: dst}
	if _, err := ses.Step(); err != nil {
		t.Fatalf("header call: %s", err)
	}
	for i := 0; i < noForwardProgressMax-1; i++ {
		ses.In = Buffer{}
		ses.Out = Buffer{Data: dst}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("idle call %d: %s", i, err)
		}
		if hint != zfmt.BlockHeaderSize {
			t.Fatalf("idle call %d hint: got %d, want %d", i, hint, zfmt.BlockHeaderSize)
		}
	}
	ses.In = Buffer{}
	ses.Out = Buffer{Data: dst}
	if _, err := ses.Step(); !errors.Is(err, ErrSrcEmpty) {
		t.Fatalf("got %v, want ErrSrcEmpty", err)
	}

	// Reset clears the counter and restarts at the next header
	ses.Reset()
	ses.In = Buffer{}
	ses.Out = Buffer{Data: dst}
	if _, err := ses.Step(); err != nil {
		t.Fatalf("after Reset: %s", err)
	}
}

// Repeated calls with a saturated output view trip the other
// side of the misuse threshold.
func TestNoProgressDstFull(t *testing.T) {
	comp := rawFrame(t, testPayload(11), true)
	ses := newTestSession(t, nil)

	ses.In = Buffer{Data: comp}
	ses.Out = Buffer{}
	if _, err := ses.Step(); err != nil {
		t.Fatalf("first call: %s", err)
	}
	for i := 0; i < noForwardProgressMax-1; i++ {
		ses.Out = Buffer{}
		hint, err := ses.Step()
		if err != nil {
			t.Fatalf("stalled call %d: %s", i, err)
		}
		if hint != frameChecksumSize {
			t.Fatalf("stalled call %d hint: got %d, want %d", i, hint, frameChecksumSize)
		}
	}
	ses.Out = Buffer{}
	if _, err := ses.Step(); !errors.Is(err, ErrDstFull) {
		t.Fatalf("got %v, want ErrDstFull", err)
	}
}

func TestStepContract(t *testing.T) {
	ses := newTestSession(t, nil)
	ses.In = Buffer{Data: make([]byte, 2), Pos: 3}
	if _, err := ses.Step(); !errors.Is(err, ErrSrcBuffer) {
		t.Errorf("got %v, want ErrSrcBuffer", err)
	}
	ses.In = Buffer{}
	ses.Out = Buffer{Pos: 1}
	if _, err := ses.Step(); !errors.Is(err, ErrDstBuffer) {
		t.Errorf("got %v, want ErrDstBuffer", err)
	}
}

func TestBadMagic(t *testing.T) {
	ses := newTestSession(t, nil)
	ses.In = Buffer{Data: []byte{0, 1, 2, 3, 4, 5, 6, 7}}
	ses.Out = Buffer{Data: make([]byte, 16)}
	if _, err := ses.Step(); !errors.Is(err, zfmt.ErrBadMagic) {
		t.Errorf("got %v, want ErrBadMagic", err)
	}
}

// A corrupted trailing checksum surfaces as a checksum error
// once the frame's final bytes are consumed.
func TestChecksumMismatch(t *testing.T) {
	comp := rawFrame(t, testPayload(300), true, 100, 100, 100)
	comp[len(comp)-1] ^= 0xff
	ses := newTestSession(t, nil)
	dst := make([]byte, 64) // smaller than the content, so no shortcut

	ses.In = Buffer{Data: comp}
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		ses.Out = Buffer{Data: dst}
		_, err = ses.Step()
	}
	if !errors.Is(err, codec.ErrChecksum) {
		t.Fatalf("got %v, want ErrChecksum", err)
	}
}

// A frame referencing a dictionary the session does not have
// bound is rejected at its header.
func TestDictIDMismatch(t *testing.T) {
	// standard frame, 1-byte dictionary ID 0x2a, 1 KiB window
	comp := []byte{0x28, 0xb5, 0x2f, 0xfd, 0x01, 0x00, 0x2a}
	ses := newTestSession(t, nil)
	ses.In = Buffer{Data: comp}
	ses.Out = Buffer{Data: make([]byte, 16)}
	if _, err := ses.Step(); !errors.Is(err, ErrDictMismatch) {
		t.Fatalf("got %v, want ErrDictMismatch", err)
	}
}

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
	"encoding/binary"
	"fmt"

	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

// Step advances the decoder as far as the current input and
// output views allow and returns a status:
//
//   - 0: the current frame is fully decoded and every decoded
//     byte has been delivered into the output view;
//   - 1: decoding is complete but the final input byte is held
//     back until the caller has drained all pending output and
//     a subsequent call confirms the input is exhausted;
//   - n > 1: advisory minimum number of further input bytes the
//     next call needs to make progress. Callers may supply more
//     or fewer.
//
// The transition order within a call is significant: a unit of
// work whose bytes are fully present in the input view is
// decoded directly from it, input is staged only when a unit
// straddles a chunk boundary, and staged output is flushed
// before more input is consumed.
func (s *Session) Step() (int, error) {
	if s.In.Pos > len(s.In.Data) {
		return 0, ErrSrcBuffer
	}
	if s.Out.Pos > len(s.Out.Data) {
		return 0, ErrDstBuffer
	}
	istart := s.In.Pos
	iend := len(s.In.Data)
	ip := istart
	ostart := s.Out.Pos
	oend := len(s.Out.Data)
	op := ostart

	work := true
	for work {
		switch s.stage {
		case stageInit:
			s.hdrLen, s.inPos, s.outStart, s.outEnd = 0, 0, 0, 0
			s.hostage = false
			s.expectedOut = s.Out
			s.stage = stageLoadHeader

		case stageLoadHeader:
			hdr, need, err := zfmt.Parse(s.hdrBuf[:s.hdrLen])
			if err != nil {
				return 0, err
			}
			if need != 0 { // header incomplete
				toLoad := need - s.hdrLen
				if remaining := iend - ip; toLoad > remaining {
					if remaining > 0 {
						copy(s.hdrBuf[s.hdrLen:], s.In.Data[ip:iend])
						s.hdrLen += remaining
						ip = iend
					}
					s.In.Pos = iend // fully consumed
					// reject bad leading bytes before asking for more
					if _, _, err := zfmt.Parse(s.hdrBuf[:s.hdrLen]); err != nil {
						return 0, err
					}
					// outstanding header bytes plus one block header
					// of look-ahead
					return maxInt(zfmt.HeaderMinSize, need) - s.hdrLen + zfmt.BlockHeaderSize, nil
				}
				copy(s.hdrBuf[s.hdrLen:], s.In.Data[ip:ip+toLoad])
				s.hdrLen = need
				ip += toLoad
				continue
			}
			s.hdr = hdr

			// single-pass shortcut: when the header declares the
			// content size, the output view can hold all of it, and
			// the whole compressed frame is already sitting in the
			// input view, decode it in one call with no staging
			if hdr.HasContentSize && hdr.Type != zfmt.FrameSkippable &&
				uint64(oend-op) >= hdr.ContentSize {
				cSize, cerr := zfmt.CompressedSize(s.In.Data[istart:iend])
				if cerr == nil && cSize <= iend-istart {
					n, err := s.onePass(s.Out.Data[op:oend], s.In.Data[istart:istart+cSize])
					if err != nil {
						return 0, err
					}
					ip = istart + cSize
					op += n // n may be 0 for an empty frame
					s.expected = 0
					s.stage = stageInit
					work = false
					break
				}
			}

			// consume the header
			if hdr.Type == zfmt.FrameSkippable {
				s.expected = int(hdr.SkipSize)
				s.fstage = frameSkip
			} else {
				if hdr.DictID != 0 && (s.dict == nil || s.dict.ID != hdr.DictID) {
					return 0, fmt.Errorf("%w: frame wants dictionary %#x", ErrDictMismatch, hdr.DictID)
				}
				if err := s.eng.Start(&s.hdr, s.hdrBuf[:s.hdrLen], s.dict); err != nil {
					return 0, err
				}
				s.expected = zfmt.BlockHeaderSize
				s.fstage = frameBlockHeader
			}

			// bound staged-buffer memory by the header's instructions
			if s.hdr.WindowSize < 1<<10 {
				s.hdr.WindowSize = 1 << 10
			}
			if s.hdr.WindowSize > s.cfg.MaxWindow {
				return 0, fmt.Errorf("%w: %d exceeds configured max %d",
					zfmt.ErrWindowTooLarge, s.hdr.WindowSize, s.cfg.MaxWindow)
			}
			if err := s.sizeStaged(); err != nil {
				return 0, err
			}
			s.stage = stageRead

		case stageRead:
			if s.eng.Pending() > 0 {
				// deferred engine output is staged, then flushed
				s.outEnd += s.eng.Drain(s.outBuff[s.outEnd:])
				s.stage = stageFlush
				continue
			}
			need := s.expected
			if need == 0 { // end of frame
				s.stage = stageInit
				work = false
				break
			}
			if iend-ip >= need { // decode directly from the input view
				if err := s.continueStream(s.In.Data[ip : ip+need]); err != nil {
					return 0, err
				}
				ip += need
				break // continueStream changed the stage
			}
			if ip == iend { // no more input
				work = false
				break
			}
			s.stage = stageLoad

		case stageLoad:
			need := s.expected
			toLoad := need - s.inPos
			var loaded int
			if s.fstage == frameSkip {
				// skipped bytes are discarded, never staged
				loaded = minInt(toLoad, iend-ip)
			} else {
				if toLoad > len(s.inBuff)-s.inPos {
					return 0, fmt.Errorf("zstdcodec: %d-byte unit exceeds staged input buffer", need)
				}
				loaded = copy(s.inBuff[s.inPos:need], s.In.Data[ip:iend])
			}
			ip += loaded
			s.inPos += loaded
			if loaded < toLoad { // not enough input; wait for more
				work = false
				break
			}
			s.inPos = 0 // unit fully staged
			var unit []byte
			if s.fstage != frameSkip {
				unit = s.inBuff[:need]
			}
			if err := s.continueStream(unit); err != nil {
				return 0, err
			}

		case stageFlush:
			toFlush := s.outEnd - s.outStart
			flushed := copy(s.Out.Data[op:oend], s.outBuff[s.outStart:s.outEnd])
			op += flushed
			s.outStart += flushed
			if flushed == toFlush { // flush completed
				s.stage = stageRead
				// rewind the staged output once drained, if the frame
				// still has more content than the buffer can hold at
				// once; this is what lets one allocation serve a whole
				// frame ring-buffer style
				if uint64(len(s.outBuff)) < s.hdr.ContentLimit() &&
					s.outStart+s.hdr.BlockSizeMax > len(s.outBuff) {
					s.outStart, s.outEnd = 0, 0
				}
				break
			}
			// cannot complete the flush
			work = false
		}
	}

	s.In.Pos = ip
	s.Out.Pos = op
	s.expectedOut = s.Out

	if ip == istart && op == ostart { // no forward progress
		s.noProgress++
		if s.noProgress >= noForwardProgressMax {
			if op == oend {
				return 0, ErrDstFull
			}
			if ip == iend {
				return 0, ErrSrcEmpty
			}
		}
	} else {
		s.noProgress = 0
	}

	hint := s.expected
	if hint == 0 { // frame fully decoded
		if s.outEnd == s.outStart { // output fully flushed
			if s.hostage {
				if s.In.Pos >= len(s.In.Data) {
					// can't release the hostage: not present
					s.stage = stageRead
					return 1, nil
				}
				s.In.Pos++ // release
			}
			return 0, nil
		}
		if !s.hostage {
			// hold the last input byte until the caller has drained
			// every decoded byte; Pos > 0 here, otherwise the final
			// block could never have been read
			s.In.Pos--
			s.hostage = true
		}
		return 1, nil
	}
	if s.fstage == frameBlockBody && !s.blk.Last {
		hint += zfmt.BlockHeaderSize // preload the next block header
	}
	hint -= s.inPos // part already staged
	return hint, nil
}

// continueStream runs one unit of work and routes any decoded
// output through the staged output buffer for flushing.
func (s *Session) continueStream(src []byte) error {
	n, err := s.decompressContinue(s.outBuff[s.outEnd:], src)
	if err != nil {
		return err
	}
	s.outEnd += n
	if s.eng.Pending() > 0 {
		s.outEnd += s.eng.Drain(s.outBuff[s.outEnd:])
	}
	s.stage = stageFlush
	return nil
}

// decompressContinue consumes exactly one unit of work (block
// header, block payload, checksum, or skipped extent) and
// updates expected and the frame stage for the next one.
func (s *Session) decompressContinue(dst, src []byte) (int, error) {
	switch s.fstage {
	case frameBlockHeader:
		blk, err := zfmt.ParseBlockHeader(src)
		if err != nil {
			return 0, err
		}
		s.blk = blk
		if blk.PayloadSize() == 0 {
			// nothing follows an empty block's header, but the
			// engine must still see it: it may be the last
			n, err := s.eng.Block(dst, blk, nil)
			if err != nil {
				return 0, err
			}
			s.finishBlock()
			return n, nil
		}
		s.expected = blk.PayloadSize()
		s.fstage = frameBlockBody
		return 0, nil

	case frameBlockBody:
		n, err := s.eng.Block(dst, s.blk, src)
		if err != nil {
			return 0, err
		}
		s.finishBlock()
		return n, nil

	case frameChecksum:
		if err := s.eng.Verify(binary.LittleEndian.Uint32(src)); err != nil {
			return 0, err
		}
		s.expected = 0
		return 0, nil

	case frameSkip:
		s.expected = 0
		return 0, nil
	}
	panic("zstdcodec: bad frame stage")
}

func (s *Session) finishBlock() {
	if s.blk.Last {
		if s.hdr.HasChecksum {
			s.expected = frameChecksumSize
			s.fstage = frameChecksum
		} else {
			s.expected = 0
		}
		return
	}
	s.expected = zfmt.BlockHeaderSize
	s.fstage = frameBlockHeader
}

// sizeStaged adapts the staged buffers to the current frame
// header. Oversized buffers are tolerated for a number of
// consecutive frames before being reallocated smaller, so a
// run of frames with similar needs never reallocates.
func (s *Session) sizeStaged() error {
	neededIn := maxInt(s.hdr.BlockSizeMax, frameChecksumSize)
	neededOut := decodingBufferSize(&s.hdr)
	if len(s.inBuff)+len(s.outBuff) >= (neededIn+neededOut)*s.cfg.ShrinkFactor {
		s.oversized++
	} else {
		s.oversized = 0
	}
	needsResize := len(s.inBuff) < neededIn ||
		len(s.outBuff) < neededOut ||
		s.oversized >= s.cfg.ShrinkAfter
	if needsResize {
		buf := s.mem.Alloc(neededIn + neededOut)
		if buf == nil {
			return ErrArenaExhausted
		}
		s.inBuff = buf[:neededIn]
		s.outBuff = buf[neededIn:]
	}
	return nil
}

// decodingBufferSize is the staged output size a frame header
// calls for: enough for the window plus a block in flight,
// but never more than the declared content.
func decodingBufferSize(h *zfmt.Header) int {
	blockSize := h.WindowSize
	if blockSize > uint64(h.BlockSizeMax) {
		blockSize = uint64(h.BlockSizeMax)
	}
	need := h.WindowSize + 2*blockSize + stagedMargin
	if lim := h.ContentLimit(); lim < need {
		need = lim
	}
	return int(need)
}

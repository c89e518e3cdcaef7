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

// Package zfmt parses the zstandard container format:
// frame headers, block headers, and skippable frames.
// It performs no entropy decoding; block payloads are
// opaque to this package.
package zfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	frameMagic   = 0xfd2fb528
	skipMagicLow = 0x184d2a50 // low nibble of the magic is a don't-care
	skipMagicMax = 0x184d2a5f

	// DictMagic marks a structured dictionary blob
	// with embedded entropy tables.
	DictMagic = 0xec30a437

	// header bytes needed before the true header
	// length can be computed (magic + descriptor)
	headerPrefixSize = 5

	// HeaderMinSize is the smallest complete frame header.
	HeaderMinSize = 6
	// HeaderMaxSize is the largest possible frame header.
	HeaderMaxSize = 18

	// BlockHeaderSize is the fixed size of a block header.
	BlockHeaderSize = 3

	// BlockSizeHardMax bounds the decoded size of any block
	// regardless of the frame's window size.
	BlockSizeHardMax = 128 << 10

	maxWindowLog = 31
)

var (
	ErrBadMagic       = errors.New("zfmt: bad frame magic")
	ErrReservedBit    = errors.New("zfmt: reserved descriptor bit set")
	ErrWindowTooLarge = errors.New("zfmt: window size too large")
	ErrTruncated      = errors.New("zfmt: truncated input")
	ErrBlockType      = errors.New("zfmt: reserved block type")
)

// FrameType discriminates ordinary frames
// from skippable frames.
type FrameType uint8

const (
	FrameStandard FrameType = iota
	FrameSkippable
)

// Header holds the decoded fields of a frame header.
type Header struct {
	Type FrameType

	// WindowSize is the history window the frame requires.
	// For single-segment frames it equals ContentSize.
	WindowSize uint64
	// ContentSize is the declared decoded size;
	// only meaningful when HasContentSize is set.
	ContentSize    uint64
	HasContentSize bool
	// HasChecksum indicates a 4-byte XXH64 content
	// checksum follows the last block.
	HasChecksum   bool
	SingleSegment bool
	// DictID is the dictionary the frame was compressed
	// with, or 0 when none was recorded.
	DictID uint32
	// BlockSizeMax is the largest decoded block size the
	// frame may contain: min(WindowSize, BlockSizeHardMax).
	// Zero for skippable frames.
	BlockSizeMax int
	// SkipSize is the payload length of a skippable frame.
	SkipSize uint32
	// Size is the total encoded header length.
	Size int
}

// ContentLimit returns ContentSize, or the maximum
// uint64 when the content size is not declared.
func (h *Header) ContentLimit() uint64 {
	if !h.HasContentSize {
		return ^uint64(0)
	}
	return h.ContentSize
}

var magicBytes = [4]byte{0x28, 0xb5, 0x2f, 0xfd}

// prefixPlausible reports whether a partial prefix could
// still grow into a valid frame or skippable-frame magic.
func prefixPlausible(src []byte) bool {
	skip := [4]byte{0x50, 0x2a, 0x4d, 0x18}
	std, skippable := true, true
	for i := range src {
		if i >= 4 {
			break
		}
		if src[i] != magicBytes[i] {
			std = false
		}
		want := skip[i]
		if i == 0 {
			if src[i]&0xf0 != want {
				skippable = false
			}
		} else if src[i] != want {
			skippable = false
		}
	}
	return std || skippable
}

// Parse decodes a frame header from the front of src.
//
// When src is too short to hold the complete header, Parse
// returns the total number of bytes the header occupies
// (or a lower bound if even that is not yet known) and a
// zero Header. need == 0 means hdr is complete and valid.
// Invalid bytes yield an error as soon as they are
// detectable, even from a partial prefix.
func Parse(src []byte) (hdr Header, need int, err error) {
	if len(src) < headerPrefixSize {
		if !prefixPlausible(src) {
			return Header{}, 0, ErrBadMagic
		}
		return Header{}, headerPrefixSize, nil
	}
	magic := binary.LittleEndian.Uint32(src)
	if magic&0xfffffff0 == skipMagicLow {
		if len(src) < 8 {
			return Header{}, 8, nil
		}
		return Header{
			Type:     FrameSkippable,
			SkipSize: binary.LittleEndian.Uint32(src[4:]),
			Size:     8,
		}, 0, nil
	}
	if magic != frameMagic {
		return Header{}, 0, ErrBadMagic
	}
	desc := src[4]
	if desc&0x08 != 0 {
		return Header{}, 0, ErrReservedBit
	}
	hdr.SingleSegment = desc&0x20 != 0
	hdr.HasChecksum = desc&0x04 != 0

	fcsSize := 0
	switch desc >> 6 {
	case 0:
		if hdr.SingleSegment {
			fcsSize = 1
		}
	case 1:
		fcsSize = 2
	case 2:
		fcsSize = 4
	case 3:
		fcsSize = 8
	}
	dictSize := 0
	switch desc & 3 {
	case 1:
		dictSize = 1
	case 2:
		dictSize = 2
	case 3:
		dictSize = 4
	}
	windSize := 0
	if !hdr.SingleSegment {
		windSize = 1
	}
	total := headerPrefixSize + windSize + dictSize + fcsSize
	if len(src) < total {
		return Header{}, total, nil
	}
	hdr.Size = total
	pos := headerPrefixSize
	if !hdr.SingleSegment {
		wd := src[pos]
		pos++
		windowLog := 10 + int(wd>>3)
		if windowLog > maxWindowLog {
			return Header{}, 0, fmt.Errorf("%w: window log %d", ErrWindowTooLarge, windowLog)
		}
		base := uint64(1) << windowLog
		hdr.WindowSize = base + (base/8)*uint64(wd&7)
	}
	switch dictSize {
	case 1:
		hdr.DictID = uint32(src[pos])
	case 2:
		hdr.DictID = uint32(binary.LittleEndian.Uint16(src[pos:]))
	case 4:
		hdr.DictID = binary.LittleEndian.Uint32(src[pos:])
	}
	pos += dictSize
	switch fcsSize {
	case 1:
		hdr.ContentSize = uint64(src[pos])
	case 2:
		hdr.ContentSize = 256 + uint64(binary.LittleEndian.Uint16(src[pos:]))
	case 4:
		hdr.ContentSize = uint64(binary.LittleEndian.Uint32(src[pos:]))
	case 8:
		hdr.ContentSize = binary.LittleEndian.Uint64(src[pos:])
	}
	hdr.HasContentSize = fcsSize > 0
	if hdr.SingleSegment {
		hdr.WindowSize = hdr.ContentSize
	}
	hdr.BlockSizeMax = int(minU64(hdr.WindowSize, BlockSizeHardMax))
	return hdr, 0, nil
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

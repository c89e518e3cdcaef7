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

package zfmt

// BlockType is the 2-bit type field of a block header.
type BlockType uint8

const (
	BlockRaw BlockType = iota
	BlockRLE
	BlockCompressed
	blockReserved
)

func (b BlockType) String() string {
	switch b {
	case BlockRaw:
		return "raw"
	case BlockRLE:
		return "rle"
	case BlockCompressed:
		return "compressed"
	}
	return "reserved"
}

// Block is a decoded block header.
type Block struct {
	Type BlockType
	// Size is the payload size for raw and compressed
	// blocks and the regenerated size for RLE blocks.
	Size int
	// Last marks the final block of a frame.
	Last bool
}

// PayloadSize returns the number of encoded bytes that
// follow the block header: Size for raw and compressed
// blocks, exactly one byte for RLE blocks.
func (b Block) PayloadSize() int {
	if b.Type == BlockRLE {
		return 1
	}
	return b.Size
}

// ParseBlockHeader decodes the 3-byte little-endian
// block header at the front of src.
func ParseBlockHeader(src []byte) (Block, error) {
	if len(src) < BlockHeaderSize {
		return Block{}, ErrTruncated
	}
	v := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
	b := Block{
		Last: v&1 != 0,
		Type: BlockType(v >> 1 & 3),
		Size: int(v >> 3),
	}
	if b.Type == blockReserved {
		return Block{}, ErrBlockType
	}
	return b, nil
}

// AppendBlockHeader appends the encoded form of b to dst.
func AppendBlockHeader(dst []byte, b Block) []byte {
	v := uint32(b.Size)<<3 | uint32(b.Type)<<1
	if b.Last {
		v |= 1
	}
	return append(dst, byte(v), byte(v>>8), byte(v>>16))
}
